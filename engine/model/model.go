// package model holds immutable mesh geometry: interleaved vertices, triangle-list indices and the stable ID the
// renderer uses to keep one GPU copy of each geometry alive across frames.
package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidGeometry is returned by NewGeometry for empty or malformed vertex/index data.
var ErrInvalidGeometry = errors.New("invalid geometry")

// geometry is the implementation of the Geometry interface.
type geometry struct {
	id                    uuid.UUID
	name                  string
	vertices              []GPUVertex
	indices               []uint32
	vertexData, indexData []byte
}

// Geometry defines the interface for immutable mesh data. Geometry is shared by reference between mesh primitives;
// two primitives pointing at the same Geometry share one set of GPU buffers.
type Geometry interface {
	// ID retrieves the stable identifier of this geometry.
	//
	// Returns:
	//   - uuid.UUID: the geometry ID
	ID() uuid.UUID

	// Name retrieves the geometry's debug name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Vertices retrieves the CPU copy of the vertices. The slice must not be modified.
	//
	// Returns:
	//   - []GPUVertex: the vertices
	Vertices() []GPUVertex

	// Indices retrieves the triangle-list indices. The slice must not be modified.
	//
	// Returns:
	//   - []uint32: the indices
	Indices() []uint32

	// IndexCount returns the number of indices.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// VertexData returns the packed vertex buffer contents.
	//
	// Returns:
	//   - []byte: the vertex data
	VertexData() []byte

	// IndexData returns the packed uint32 index buffer contents.
	//
	// Returns:
	//   - []byte: the index data
	IndexData() []byte
}

var _ Geometry = &geometry{}

// NewGeometry creates a new Geometry from vertex and triangle-list index data. The inputs are copied.
//
// Parameters:
//   - vertices: the vertices
//   - indices: the triangle-list indices into vertices
//   - options: optional builder options (name, ID)
//
// Returns:
//   - Geometry: the geometry
//   - error: ErrInvalidGeometry if there are no vertices, the index count is not a multiple of 3, or an index is out of range
func NewGeometry(vertices []GPUVertex, indices []uint32, options ...GeometryBuilderOption) (Geometry, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("%w: no vertices", ErrInvalidGeometry)
	}
	if len(indices) == 0 || len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: index count %d is not a positive multiple of 3", ErrInvalidGeometry, len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, fmt.Errorf("%w: index %d at position %d exceeds vertex count %d", ErrInvalidGeometry, idx, i, len(vertices))
		}
	}

	g := &geometry{
		id:       uuid.New(),
		vertices: append([]GPUVertex(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}
	for _, option := range options {
		option(g)
	}
	g.vertexData = MarshalVertices(g.vertices)
	g.indexData = MarshalIndices(g.indices)
	return g, nil
}

func (g *geometry) ID() uuid.UUID {
	return g.id
}

func (g *geometry) Name() string {
	return g.name
}

func (g *geometry) Vertices() []GPUVertex {
	return g.vertices
}

func (g *geometry) Indices() []uint32 {
	return g.indices
}

func (g *geometry) IndexCount() int {
	return len(g.indices)
}

func (g *geometry) VertexData() []byte {
	return g.vertexData
}

func (g *geometry) IndexData() []byte {
	return g.indexData
}
