package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUVertexLayout(t *testing.T) {
	v := GPUVertex{Position: [3]float32{1, 2, 3}, Tangent: [4]float32{0, 0, 0, -1}}
	assert.Equal(t, GPUVertexStride, v.Size())

	buf := v.Marshal()
	require.Len(t, buf, GPUVertexStride)
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])))
	assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(buf[44:48])))

	layout := VertexLayout()
	assert.Equal(t, uint64(GPUVertexStride), layout.ArrayStride)
	assert.Len(t, layout.Attributes, 4)
	assert.Contains(t, GPUVertexSource, "struct VertexInput")
}

func TestNewGeometryValidates(t *testing.T) {
	tri := []GPUVertex{{}, {}, {}}

	_, err := NewGeometry(nil, []uint32{0, 1, 2})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = NewGeometry(tri, []uint32{0, 1})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = NewGeometry(tri, []uint32{0, 1, 3})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	id := uuid.New()
	g, err := NewGeometry(tri, []uint32{0, 1, 2}, WithName("tri"), WithID(id))
	require.NoError(t, err)
	assert.Equal(t, id, g.ID())
	assert.Equal(t, "tri", g.Name())
	assert.Equal(t, 3, g.IndexCount())
	assert.Len(t, g.VertexData(), 3*GPUVertexStride)
	assert.Len(t, g.IndexData(), 12)
}

func TestGeometryIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, Cube(1).ID(), Cube(1).ID())
}

func TestCubeWindingFacesOutward(t *testing.T) {
	c := Cube(0.5)
	require.Equal(t, 36, c.IndexCount())

	vs, is := c.Vertices(), c.Indices()
	for i := 0; i < len(is); i += 3 {
		a := mgl32.Vec3(vs[is[i]].Position)
		b := mgl32.Vec3(vs[is[i+1]].Position)
		d := mgl32.Vec3(vs[is[i+2]].Position)
		n := b.Sub(a).Cross(d.Sub(a)).Normalize()
		assert.True(t, n.ApproxEqualThreshold(mgl32.Vec3(vs[is[i]].Normal), 1e-6), "triangle %d normal %v", i/3, n)

		for _, p := range []mgl32.Vec3{a, b, d} {
			for _, comp := range p {
				assert.InDelta(t, 0.5, mgl32.Abs(comp), 1e-6)
			}
		}
	}
}

func TestPlaneFacesUp(t *testing.T) {
	p := Plane(2)
	vs, is := p.Vertices(), p.Indices()
	a := mgl32.Vec3(vs[is[0]].Position)
	n := mgl32.Vec3(vs[is[1]].Position).Sub(a).Cross(mgl32.Vec3(vs[is[2]].Position).Sub(a))
	assert.Greater(t, n.Y(), float32(0))
}
