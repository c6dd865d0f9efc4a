package shader

import "github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"

// vertexFormatInfo holds the vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format gpu.VertexFormat
	size   uint64
}

// wgslTypeLayout holds the byte size and alignment for a WGSL type under WGSL layout rules.
// Used to compute the size of buffer bindings.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// Binding is one @group/@binding resource declaration found in a processed program.
type Binding struct {
	Group   uint32
	Binding uint32
	// Name is the WGSL variable name.
	Name string
	Type gpu.BindingType
	// ViewDimension is set for texture bindings.
	ViewDimension gpu.TextureViewDimension
	// StorageFormat is set for storage texture bindings.
	StorageFormat gpu.TextureFormat
	// Size is the byte size of the bound struct for buffer bindings. Structs ending in a runtime-sized
	// array report their fixed prefix.
	Size uint64
}
