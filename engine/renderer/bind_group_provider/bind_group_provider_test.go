package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T) (software.Device, layout.Registry) {
	t.Helper()
	d := software.NewDevice(software.WithWorkers(1))
	t.Cleanup(d.Close)
	return d, layout.NewRegistry(d)
}

func TestInitCreatesOwnedBuffers(t *testing.T) {
	d, reg := newDevice(t)
	p := NewBindGroupProvider("camera", layout.BindGroupCamera)
	assert.Nil(t, p.BindGroup())
	assert.Error(t, p.Write(layout.CameraBindingUniform, []byte{1}))

	require.NoError(t, p.Init(d, reg))
	bg := p.BindGroup()
	require.NotNil(t, bg)
	buf := p.Buffer(layout.CameraBindingUniform)
	require.NotNil(t, buf)
	assert.Equal(t, uint64(layout.CameraUniformSize), buf.Size())

	require.NoError(t, p.Init(d, reg))
	assert.Same(t, bg, p.BindGroup())
}

func TestInitFailsOnMissingTexture(t *testing.T) {
	d, reg := newDevice(t)
	p := NewBindGroupProvider("skybox", layout.BindGroupSkybox)
	err := p.Init(d, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skybox")
	// only the layout is live, nothing leaked
	assert.Equal(t, 1, d.LiveResources())
}

func TestWriteIfChanged(t *testing.T) {
	d, reg := newDevice(t)
	p := NewBindGroupProvider("tonemap_params", layout.BindGroupTonemap,
		WithTextureView(layout.TonemapBindingHDR, hdrView(t, d)),
		WithSampler(layout.TonemapBindingSampler, linearSampler(t, d)),
	)
	require.NoError(t, p.Init(d, reg))
	buf := p.Buffer(layout.TonemapBindingParams)

	data := []byte{1, 2, 3, 4}
	wrote, err := p.WriteIfChanged(layout.TonemapBindingParams, data)
	require.NoError(t, err)
	assert.True(t, wrote)
	wrote, err = p.WriteIfChanged(layout.TonemapBindingParams, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, d.BufferWrites(buf))

	data[0] = 9
	wrote, err = p.WriteIfChanged(layout.TonemapBindingParams, data)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, 2, d.BufferWrites(buf))

	assert.Error(t, p.Write(layout.TonemapBindingHDR, data), "textures have no owned buffer")
}

func TestWriteGrowsStorageBuffer(t *testing.T) {
	d, reg := newDevice(t)
	p := lightsProvider(t, d, reg)
	before := p.BindGroup()
	small := p.Buffer(layout.LightsBindingBuffer)

	require.NoError(t, p.Write(layout.LightsBindingBuffer, make([]byte, 16)))
	assert.Same(t, before, p.BindGroup())

	big := make([]byte, 16+48*3)
	big[20] = 7
	require.NoError(t, p.Write(layout.LightsBindingBuffer, big))
	assert.NotSame(t, before, p.BindGroup())
	grown := p.Buffer(layout.LightsBindingBuffer)
	assert.Equal(t, uint64(len(big)), grown.Size())

	_, err := d.ReadBuffer(small)
	assert.ErrorIs(t, err, gpu.ErrUnknownResource)
	got, err := d.ReadBuffer(grown)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestCommitRebindsChangedViews(t *testing.T) {
	d, reg := newDevice(t)
	p := lightsProvider(t, d, reg)
	before := p.BindGroup()

	rebuilt, err := p.Commit()
	require.NoError(t, err)
	assert.False(t, rebuilt)

	cube := depthCubes(t, d, "other", 2)
	p.SetTextureView(layout.LightsBindingShadowMaps, cube)
	rebuilt, err = p.Commit()
	require.NoError(t, err)
	assert.True(t, rebuilt)
	assert.NotSame(t, before, p.BindGroup())
	assert.Same(t, cube, p.TextureView(layout.LightsBindingShadowMaps))

	e, ok := p.BindGroup().Entry(layout.LightsBindingShadowMaps)
	require.True(t, ok)
	assert.Same(t, cube, e.TextureView)
}

func TestReleaseKeepsBorrowedResources(t *testing.T) {
	d, reg := newDevice(t)
	view := hdrView(t, d)
	sampler := linearSampler(t, d)
	p := NewBindGroupProvider("tonemap", layout.BindGroupTonemap,
		WithTextureView(layout.TonemapBindingHDR, view),
		WithSampler(layout.TonemapBindingSampler, sampler),
	)
	require.NoError(t, p.Init(d, reg))
	before := d.LiveResources()

	p.Release()
	// the params buffer and the bind group go, the view, its texture and the sampler stay
	assert.Equal(t, before-2, d.LiveResources())
	assert.Nil(t, p.BindGroup())
	assert.Nil(t, p.Buffer(layout.TonemapBindingParams))
}

func TestApplyWrites(t *testing.T) {
	d, reg := newDevice(t)
	a := NewBindGroupProvider("object_a", layout.BindGroupTransform)
	b := NewBindGroupProvider("object_b", layout.BindGroupTransform)
	require.NoError(t, a.Init(d, reg))
	require.NoError(t, b.Init(d, reg))

	writes := []BufferWrite{
		{Provider: a, Binding: layout.TransformBindingUniform, Data: []byte{1}},
		{Provider: b, Binding: layout.TransformBindingUniform, Data: []byte{2}},
	}
	n, err := ApplyWrites(writes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	writes[1].Data = []byte{3}
	n, err = ApplyWrites(writes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = ApplyWrites([]BufferWrite{{Provider: a, Binding: 5, Data: []byte{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object_a")
}

func hdrView(t *testing.T, d software.Device) *gpu.TextureView {
	t.Helper()
	tex, err := d.CreateTexture(gpu.TextureDescriptor{Label: "hdr", Width: 2, Height: 2, Layers: 1, Format: gpu.TextureFormatRGBA16Float, Usage: gpu.TextureUsageTextureBinding})
	require.NoError(t, err)
	v, err := d.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: "hdr_view"})
	require.NoError(t, err)
	return v
}

func linearSampler(t *testing.T, d software.Device) *gpu.Sampler {
	t.Helper()
	s, err := d.CreateSampler(gpu.SamplerDescriptor{Label: "linear", MagFilter: gpu.FilterModeLinear, MinFilter: gpu.FilterModeLinear})
	require.NoError(t, err)
	return s
}

func depthCubes(t *testing.T, d software.Device, label string, cubes uint32) *gpu.TextureView {
	t.Helper()
	tex, err := d.CreateTexture(gpu.TextureDescriptor{Label: label, Width: 2, Height: 2, Layers: 6 * cubes, Format: gpu.TextureFormatDepth32Float, Usage: gpu.TextureUsageTextureBinding})
	require.NoError(t, err)
	v, err := d.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: label + "_cubes", Dimension: gpu.TextureViewDimensionCubeArray})
	require.NoError(t, err)
	return v
}

func lightsProvider(t *testing.T, d software.Device, reg layout.Registry) BindGroupProvider {
	t.Helper()
	cmp, err := d.CreateSampler(gpu.SamplerDescriptor{Label: "shadow", Compare: gpu.CompareFunctionLessEqual})
	require.NoError(t, err)
	p := NewBindGroupProvider("lights", layout.BindGroupLights,
		WithSampler(layout.LightsBindingSampler, cmp),
		WithTextureView(layout.LightsBindingShadowMaps, depthCubes(t, d, "shadow_cubes", 1)),
	)
	require.NoError(t, p.Init(d, reg))
	return p
}
