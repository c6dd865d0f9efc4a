package shadow

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
	"github.com/Carmen-Shannon/oxy-pbr/engine/model"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	device   software.Device
	registry layout.Registry
	shadows  Shadows
}

func newFixture(t *testing.T, options ...ShadowsBuilderOption) *fixture {
	t.Helper()
	d := software.NewDevice(software.WithWorkers(4))
	t.Cleanup(d.Close)
	reg := layout.NewRegistry(d)
	s, err := NewShadows(d, reg, pipeline.NewCache(d, reg), options...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return &fixture{device: d, registry: reg, shadows: s}
}

func (f *fixture) caster(t *testing.T, geo model.Geometry, m mgl32.Mat4) Caster {
	t.Helper()
	world, err := transform.Resolve(mgl32.Ident4(), m)
	require.NoError(t, err)
	p := bind_group_provider.NewBindGroupProvider("caster", layout.BindGroupTransform)
	require.NoError(t, p.Init(f.device, f.registry))
	u := world.Uniform()
	require.NoError(t, p.Write(layout.TransformBindingUniform, u.Marshal()))

	vb, err := f.device.CreateBuffer(gpu.BufferDescriptor{Label: "vertices", Size: uint64(len(geo.VertexData())), Usage: gpu.BufferUsageVertex | gpu.BufferUsageCopyDst})
	require.NoError(t, err)
	require.NoError(t, f.device.WriteBuffer(vb, 0, geo.VertexData()))
	ib, err := f.device.CreateBuffer(gpu.BufferDescriptor{Label: "indices", Size: uint64(len(geo.IndexData())), Usage: gpu.BufferUsageIndex | gpu.BufferUsageCopyDst})
	require.NoError(t, err)
	require.NoError(t, f.device.WriteBuffer(ib, 0, geo.IndexData()))

	return Caster{Transform: p.BindGroup(), Vertices: vb, Indices: ib, IndexCount: uint32(geo.IndexCount())}
}

func states(lights ...light.PointLight) []light.State {
	return light.StatesOf(lights)
}

func TestDefaults(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, uint32(1024), f.shadows.Resolution())
	near, far := f.shadows.NearFar()
	assert.Equal(t, float32(0.5), near)
	assert.Equal(t, float32(25), far)

	maps, err := f.shadows.Prepare(states(light.NewPointLight()))
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, 0, maps[0].Index)
	tex := maps[0].Texture
	assert.Equal(t, uint32(1024), tex.Width())
	assert.Equal(t, uint32(1024), tex.Height())
	assert.Equal(t, uint32(6), tex.Layers())
	assert.Equal(t, gpu.TextureFormatDepth32Float, tex.Format())
	assert.Equal(t, gpu.TextureViewDimensionCube, maps[0].CubeView.Dimension())
	for i, v := range maps[0].FaceViews {
		assert.Equal(t, uint32(i), v.BaseLayer())
		assert.Equal(t, uint32(1), v.LayerCount())
	}

	assert.Equal(t, gpu.CompareFunctionLessEqual, f.shadows.Sampler().Descriptor().Compare)
	assert.Equal(t, 1, f.shadows.Capacity())
	maps2 := f.shadows.ShadowMaps()
	assert.Same(t, tex, maps2.Texture())
	assert.Equal(t, gpu.TextureViewDimensionCubeArray, maps2.Dimension())
	assert.Equal(t, uint32(6), maps2.LayerCount())
}

func TestPrepareIsIdempotent(t *testing.T) {
	f := newFixture(t, WithResolution(8))
	l := light.NewPointLight(light.WithPosition(1, 2, 3))

	first, err := f.shadows.Prepare(states(l))
	require.NoError(t, err)
	face := first[0].Faces[common.CubeFacePositiveX].Buffer(layout.ShadowFaceBindingUniform)
	assert.Equal(t, 1, f.device.BufferWrites(face))
	live := f.device.LiveResources()

	second, err := f.shadows.Prepare(states(l))
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])
	assert.Same(t, first[0].Texture, second[0].Texture)
	assert.Equal(t, 1, f.shadows.Allocations())
	assert.Equal(t, live, f.device.LiveResources())
	assert.Equal(t, 1, f.device.BufferWrites(face), "an unmoved light writes nothing")

	l.SetPosition(mgl32.Vec3{4, 2, 3})
	_, err = f.shadows.Prepare(states(l))
	require.NoError(t, err)
	assert.Equal(t, 2, f.device.BufferWrites(face))
	assert.Equal(t, 1, f.shadows.Allocations())

	data, err := f.device.ReadBuffer(face)
	require.NoError(t, err)
	want := first[0].Cameras[common.CubeFacePositiveX].ViewProj
	assert.True(t, common.ApproxEqualMat4(want, common.ReadMat4(data[:64]), 1e-5))
}

func TestPrepareSweepsRemovedLights(t *testing.T) {
	f := newFixture(t, WithResolution(4))
	a := light.NewPointLight()
	b := light.NewPointLight(light.WithPosition(0, 5, 0))
	_, err := f.shadows.Prepare(states(a, b))
	require.NoError(t, err)
	withBoth := f.device.LiveResources()

	_, err = f.shadows.Prepare(states(b))
	require.NoError(t, err)
	assert.Nil(t, f.shadows.Cubemap(a.ID()))
	assert.NotNil(t, f.shadows.Cubemap(b.ID()))
	assert.Less(t, f.device.LiveResources(), withBoth)

	assert.True(t, f.shadows.Release(b.ID()))
	assert.False(t, f.shadows.Release(b.ID()))
}

func TestRecordOrdersFacesPerLight(t *testing.T) {
	f := newFixture(t, WithResolution(4))
	maps, err := f.shadows.Prepare(states(light.NewPointLight(), light.NewPointLight(light.WithPosition(0, 3, 0))))
	require.NoError(t, err)

	require.NoError(t, f.shadows.RenderFaces(maps, nil))
	subs := f.device.Submissions()
	require.Len(t, subs, 12)
	for i, sub := range subs {
		li, face := i/6, common.CubeFace(i%6)
		assert.Equal(t, maps[li].Texture.ID(), sub.DepthTarget)
		assert.Equal(t, uint32(6*li)+uint32(face), sub.DepthLayer)
		assert.Equal(t, gpu.LoadOpClear, sub.DepthLoadOp)
		assert.Empty(t, sub.ColorTargets)
		assert.Contains(t, sub.Pass, face.String())
		assert.Equal(t, []string{PipelineKey}, sub.Pipelines)
	}
}

func TestRecordNamesMissingLight(t *testing.T) {
	f := newFixture(t, WithResolution(4))
	maps, err := f.shadows.Prepare(states(light.NewPointLight()))
	require.NoError(t, err)

	err = f.shadows.Record(gpu.NewCommandEncoder("shadow"), []*Cubemap{maps[0], nil}, nil)
	var stageErr *common.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, common.StageShadow, stageErr.Stage)
	assert.Equal(t, common.SubjectLight, stageErr.Subject)
	assert.Equal(t, 1, stageErr.Index)
	assert.ErrorIs(t, err, ErrNoCubemap)
}

// A light at the origin and a cube 5 units along +X: the +X face sees the cube near its center, the -X face
// sees nothing.
func TestPointLightCubeFaces(t *testing.T) {
	const size = 64
	f := newFixture(t, WithResolution(size))
	l := light.NewPointLight(light.WithPosition(0, 0, 0))
	maps, err := f.shadows.Prepare(states(l))
	require.NoError(t, err)

	cube := f.caster(t, model.Cube(1), mgl32.Translate3D(5, 0, 0))
	require.NoError(t, f.shadows.RenderFaces(maps, []Caster{cube}))

	posX, err := f.device.ReadTextureLayer(maps[0].Texture, uint32(common.CubeFacePositiveX))
	require.NoError(t, err)
	center := posX[(size/2)*size+size/2]
	assert.Less(t, center, float32(1))
	assert.Greater(t, center, float32(0))

	covered := 0
	for _, v := range posX {
		if v < 1 {
			covered++
		}
	}
	assert.Greater(t, covered, 0)
	assert.Less(t, covered, size*size, "the cube does not fill the whole face")

	negX, err := f.device.ReadTextureLayer(maps[0].Texture, uint32(common.CubeFaceNegativeX))
	require.NoError(t, err)
	for i, v := range negX {
		require.Equal(t, float32(1), v, "texel %d of -X", i)
	}
}

func TestPrepareGrowsCubeArray(t *testing.T) {
	f := newFixture(t, WithResolution(4))
	lights := make([]light.PointLight, 5)
	for i := range lights {
		lights[i] = light.NewPointLight(light.WithPosition(float32(i), 2, 0))
	}

	maps, err := f.shadows.Prepare(states(lights...))
	require.NoError(t, err)
	require.Len(t, maps, 5)
	assert.Equal(t, 5, f.shadows.Capacity())
	assert.Equal(t, 5, f.shadows.Allocations())

	array := f.shadows.ShadowMaps()
	assert.Equal(t, uint32(30), array.LayerCount())
	for i, c := range maps {
		assert.Equal(t, i, c.Index)
		assert.Same(t, array.Texture(), c.Texture)
		assert.Equal(t, uint32(6*i), c.CubeView.BaseLayer())
		assert.Equal(t, uint32(6*i+5), c.FaceViews[common.CubeFaceNegativeZ].BaseLayer())
	}

	require.NoError(t, f.shadows.RenderFaces(maps, nil))
	assert.Len(t, f.device.Submissions(), 30)

	// dropping to two lights keeps the array and moves the survivors to the front
	maps, err = f.shadows.Prepare(states(lights[4], lights[1]))
	require.NoError(t, err)
	assert.Equal(t, 5, f.shadows.Capacity())
	assert.Same(t, array, f.shadows.ShadowMaps())
	assert.Equal(t, lights[4].ID(), maps[0].LightID)
	assert.Equal(t, 0, maps[0].Index)
	assert.Equal(t, uint32(0), maps[0].CubeView.BaseLayer())
	assert.Equal(t, 1, maps[1].Index)
	assert.Nil(t, f.shadows.Cubemap(lights[0].ID()))
	assert.Equal(t, 5, f.shadows.Allocations())
}

func TestWithCapacityPreallocates(t *testing.T) {
	f := newFixture(t, WithResolution(4), WithCapacity(3))
	assert.Equal(t, 3, f.shadows.Capacity())
	array := f.shadows.ShadowMaps()

	_, err := f.shadows.Prepare(states(light.NewPointLight(), light.NewPointLight(), light.NewPointLight()))
	require.NoError(t, err)
	assert.Same(t, array, f.shadows.ShadowMaps())
}

// The second light's faces land in cube 1 of the array and only that cube sees the caster.
func TestSecondLightRendersIntoItsOwnCube(t *testing.T) {
	const size = 32
	f := newFixture(t, WithResolution(size))
	far := light.NewPointLight(light.WithPosition(0, 100, 0))
	near := light.NewPointLight(light.WithPosition(0, 0, 0))
	maps, err := f.shadows.Prepare(states(far, near))
	require.NoError(t, err)

	cube := f.caster(t, model.Cube(1), mgl32.Translate3D(5, 0, 0))
	require.NoError(t, f.shadows.RenderFaces(maps, []Caster{cube}))

	seen, err := f.device.ReadTextureLayer(maps[1].Texture, uint32(common.CubeFaceCount)+uint32(common.CubeFacePositiveX))
	require.NoError(t, err)
	assert.Less(t, seen[(size/2)*size+size/2], float32(1))

	unseen, err := f.device.ReadTextureLayer(maps[0].Texture, uint32(common.CubeFacePositiveX))
	require.NoError(t, err)
	for i, v := range unseen {
		require.Equal(t, float32(1), v, "texel %d of the first light's +X face", i)
	}
}
