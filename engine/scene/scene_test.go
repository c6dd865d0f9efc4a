package scene

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/engine/camera"
	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
	"github.com/Carmen-Shannon/oxy-pbr/engine/model"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meshOf(g model.Geometry, mat int) Mesh {
	return Mesh{Primitives: []Primitive{{Geometry: g, Material: mat}}}
}

func TestWalkIsDepthFirstPreOrder(t *testing.T) {
	cube := model.Cube(1)
	leafA := NewMeshNode(meshOf(cube, 0), WithNodeName("a"))
	leafB := NewCameraNode(CameraParams{FovY: 1, Near: 0.1, Far: 10}, WithNodeName("b"))
	mid := NewEmptyNode(WithNodeName("mid"), WithChildren(leafA, leafB))
	last := NewMeshNode(meshOf(cube, 0), WithNodeName("last"))

	var order []string
	record := func(n *Node, _ mgl32.Mat4) error { order = append(order, n.Name()); return nil }
	err := Walk([]*Node{mid, last}, mgl32.Ident4(), Visitor{
		Mesh:   func(n *Node, _ transform.World) error { order = append(order, n.Name()); return nil },
		Camera: record,
		Empty:  record,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mid", "a", "b", "last"}, order)
}

func TestWalkThreadsParentTransform(t *testing.T) {
	child := NewMeshNode(meshOf(model.Cube(1), 0), WithLocal(transform.FromTranslation(0, 1, 0)))
	root := NewEmptyNode(WithLocal(transform.FromTranslation(5, 0, 0)), WithChildren(child))

	var got mgl32.Vec3
	err := Walk([]*Node{root}, mgl32.Translate3D(0, 0, 2), Visitor{
		Mesh: func(_ *Node, w transform.World) error {
			got = w.Model.Col(3).Vec3()
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{5, 1, 2}, got)
}

func TestWalkReportsSingularMeshNode(t *testing.T) {
	flat := transform.Identity()
	flat.Scale = mgl32.Vec3{1, 0, 1}
	bad := NewMeshNode(meshOf(model.Cube(1), 0), WithLocal(flat))

	err := Walk([]*Node{bad}, mgl32.Ident4(), Visitor{})
	assert.ErrorIs(t, err, transform.ErrSingularMatrix)
	assert.Contains(t, err.Error(), bad.ID().String())

	// singular empty nodes are fine until a mesh below them needs a normal matrix
	group := NewEmptyNode(WithLocal(flat))
	assert.NoError(t, Walk([]*Node{group}, mgl32.Ident4(), Visitor{}))
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	boom := errors.New("boom")
	n := NewCameraNode(CameraParams{})
	err := Walk([]*Node{n, NewEmptyNode()}, mgl32.Ident4(), Visitor{
		Camera: func(*Node, mgl32.Mat4) error { return boom },
		Empty:  func(*Node, mgl32.Mat4) error { t.Fatal("walk continued after error"); return nil },
	})
	assert.ErrorIs(t, err, boom)
}

func TestNodeKinds(t *testing.T) {
	assert.Equal(t, NodeKindEmpty, NewEmptyNode().Kind())
	assert.Equal(t, NodeKindMesh, NewMeshNode(meshOf(model.Cube(1), 0)).Kind())
	cam := NewCameraNode(CameraParams{FovY: 1})
	assert.Equal(t, NodeKindCamera, cam.Kind())
	assert.Nil(t, cam.Mesh())
	assert.Equal(t, float32(1), cam.Camera().FovY)
	assert.Panics(t, func() { NewMeshNode(Mesh{}) })
}

func TestSceneContainer(t *testing.T) {
	a := NewEntity(nil, []material.Material{material.NewMaterial()}, WithEntityName("a"))
	b := NewEntity(nil, nil, WithEntityName("b"))
	l := light.NewPointLight()
	s := NewScene("test", camera.NewCamera(), WithEntities(a, b), WithLights(l))

	require.Len(t, s.Entities(), 2)
	assert.Equal(t, "a", s.Entities()[0].Name())

	assert.True(t, s.RemoveEntity(a.ID()))
	assert.False(t, s.RemoveEntity(a.ID()))
	assert.Equal(t, []Entity{b}, s.Entities())

	assert.True(t, s.RemoveLight(l.ID()))
	assert.Empty(t, s.Lights())

	a.SetTransform(transform.FromTranslation(1, 0, 0))
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, a.Transform().Translation)

	assert.Panics(t, func() { NewScene("nil", nil) })
}
