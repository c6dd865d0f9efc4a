// package gpu describes the graphics-device boundary the renderer core consumes. It holds the resource handles,
// descriptors and the device-agnostic command recording that both the WebGPU backend and the software device execute.
package gpu

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrUnknownResource is returned when a handle was not created by the device it is used with, or was already released.
	ErrUnknownResource = errors.New("gpu: unknown or released resource")
	// ErrInvalidDescriptor is returned when a descriptor fails validation before any device work happens.
	ErrInvalidDescriptor = errors.New("gpu: invalid descriptor")
)

// ResourceID uniquely identifies a GPU resource handle for the lifetime of the process.
type ResourceID uint64

var resourceCounter atomic.Uint64

// nextResourceID hands out a fresh ResourceID. IDs start at 1 so the zero value never names a resource.
func nextResourceID() ResourceID {
	return ResourceID(resourceCounter.Add(1))
}

// BufferUsage is a bit set describing how a buffer may be used.
type BufferUsage uint32

const (
	BufferUsageCopySrc BufferUsage = 1 << iota
	BufferUsageCopyDst
	BufferUsageIndex
	BufferUsageVertex
	BufferUsageUniform
	BufferUsageStorage
)

// TextureUsage is a bit set describing how a texture may be used.
type TextureUsage uint32

const (
	TextureUsageCopySrc TextureUsage = 1 << iota
	TextureUsageCopyDst
	TextureUsageTextureBinding
	TextureUsageStorageBinding
	TextureUsageRenderAttachment
)

// TextureFormat identifies the texel layout of a texture.
type TextureFormat int

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatRGBA8Unorm
	TextureFormatRGBA8UnormSrgb
	TextureFormatBGRA8Unorm
	TextureFormatBGRA8UnormSrgb
	TextureFormatRGBA16Float
	TextureFormatRGBA32Float
	TextureFormatDepth32Float
)

// BytesPerTexel returns the size in bytes of a single texel of this format, or 0 for TextureFormatUndefined.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSrgb, TextureFormatBGRA8Unorm, TextureFormatBGRA8UnormSrgb:
		return 4
	case TextureFormatRGBA16Float:
		return 8
	case TextureFormatRGBA32Float:
		return 16
	case TextureFormatDepth32Float:
		return 4
	default:
		return 0
	}
}

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool {
	return f == TextureFormatDepth32Float
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "rgba8unorm"
	case TextureFormatRGBA8UnormSrgb:
		return "rgba8unorm-srgb"
	case TextureFormatBGRA8Unorm:
		return "bgra8unorm"
	case TextureFormatBGRA8UnormSrgb:
		return "bgra8unorm-srgb"
	case TextureFormatRGBA16Float:
		return "rgba16float"
	case TextureFormatRGBA32Float:
		return "rgba32float"
	case TextureFormatDepth32Float:
		return "depth32float"
	default:
		return "undefined"
	}
}

// TextureViewDimension selects how a view interprets the layers of its texture.
type TextureViewDimension int

const (
	TextureViewDimension2D TextureViewDimension = iota
	TextureViewDimension2DArray
	TextureViewDimensionCube
	TextureViewDimensionCubeArray
)

// ShaderStage is a bit set of programmable stages a binding is visible to.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
)

// BindingType classifies a single bind group layout entry.
type BindingType int

const (
	BindingTypeUniformBuffer BindingType = iota
	BindingTypeStorageBuffer
	BindingTypeReadOnlyStorageBuffer
	// BindingTypeFilterableTexture is a float texture sampled with a filtering sampler.
	BindingTypeFilterableTexture
	// BindingTypeUnfilterableTexture is a float texture only read with textureLoad.
	BindingTypeUnfilterableTexture
	BindingTypeDepthTexture
	// BindingTypeStorageTexture is a write-only storage texture.
	BindingTypeStorageTexture
	BindingTypeSampler
	BindingTypeComparisonSampler
)

// IsBuffer reports whether the binding is backed by a buffer.
func (t BindingType) IsBuffer() bool {
	return t == BindingTypeUniformBuffer || t == BindingTypeStorageBuffer || t == BindingTypeReadOnlyStorageBuffer
}

// IsTexture reports whether the binding is backed by a texture view.
func (t BindingType) IsTexture() bool {
	switch t {
	case BindingTypeFilterableTexture, BindingTypeUnfilterableTexture, BindingTypeDepthTexture, BindingTypeStorageTexture:
		return true
	}
	return false
}

// IsSampler reports whether the binding is backed by a sampler.
func (t BindingType) IsSampler() bool {
	return t == BindingTypeSampler || t == BindingTypeComparisonSampler
}

// FilterMode selects texel filtering.
type FilterMode int

const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

// AddressMode selects how out-of-range texture coordinates are resolved.
type AddressMode int

const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
	AddressModeMirrorRepeat
)

// CompareFunction is used by depth tests and comparison samplers.
type CompareFunction int

const (
	CompareFunctionUndefined CompareFunction = iota
	CompareFunctionNever
	CompareFunctionLess
	CompareFunctionLessEqual
	CompareFunctionEqual
	CompareFunctionGreater
	CompareFunctionAlways
)

// Test evaluates the comparison for a fragment value against a stored reference.
//
// Parameters:
//   - value: the incoming value
//   - reference: the stored value
//
// Returns:
//   - bool: true if the comparison passes
func (c CompareFunction) Test(value, reference float32) bool {
	switch c {
	case CompareFunctionNever:
		return false
	case CompareFunctionLess:
		return value < reference
	case CompareFunctionLessEqual:
		return value <= reference
	case CompareFunctionEqual:
		return value == reference
	case CompareFunctionGreater:
		return value > reference
	default:
		return true
	}
}

// CullMode selects which triangle facing is discarded by a render pipeline.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// VertexFormat is the type of a single vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
)

// LoadOp selects what happens to an attachment at the start of a render pass.
type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

func (op LoadOp) String() string {
	if op == LoadOpLoad {
		return "load"
	}
	return "clear"
}

// Color is an RGBA clear value.
type Color struct {
	R, G, B, A float64
}
