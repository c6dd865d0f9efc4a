package pipeline

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
	d := software.NewDevice(software.WithWorkers(2))
	t.Cleanup(d.Close)
	return d, layout.NewRegistry(d)
}

func TestRenderDescriptor(t *testing.T) {
	_, reg := newDevice(t)
	p := NewPipeline("pbr", layout.PassPBR,
		WithColorFormats(gpu.TextureFormatRGBA16Float),
		WithDepthCompare(gpu.CompareFunctionLessEqual),
		WithCullMode(gpu.CullModeBack),
	)
	desc, err := p.Descriptor(reg)
	require.NoError(t, err)

	assert.Equal(t, "pbr", desc.Label)
	assert.Equal(t, "vs_pbr", desc.VertexEntry)
	assert.Equal(t, "fs_pbr", desc.FragmentEntry)
	assert.Equal(t, []gpu.TextureFormat{gpu.TextureFormatRGBA16Float}, desc.ColorFormats)
	assert.Len(t, desc.BindGroupLayouts, len(layout.PassPBR.Groups()))
	assert.Len(t, desc.VertexBuffers, 1)
	require.NotNil(t, desc.Depth)
	assert.Equal(t, gpu.CompareFunctionLessEqual, desc.Depth.Compare)
	assert.True(t, desc.Depth.WriteEnabled)
	assert.Equal(t, gpu.CullModeBack, desc.CullMode)
	assert.Equal(t, PipelineTypeRender, p.Type())
}

func TestDepthOnlyDescriptorHasNoColorTargets(t *testing.T) {
	_, reg := newDevice(t)
	p := NewPipeline("shadow", layout.PassShadow, WithColorFormats(gpu.TextureFormatRGBA16Float))
	desc, err := p.Descriptor(reg)
	require.NoError(t, err)
	assert.Empty(t, desc.FragmentEntry)
	assert.Empty(t, desc.ColorFormats)
	require.NotNil(t, desc.Depth)
}

func TestBuildIsIdempotent(t *testing.T) {
	d, reg := newDevice(t)
	p := NewPipeline("shadow", layout.PassShadow, WithDepthCompare(gpu.CompareFunctionLessEqual))
	require.NoError(t, p.Build(d, reg))
	first := p.Render()
	require.NotNil(t, first)
	assert.Nil(t, p.Compute())

	require.NoError(t, p.Build(d, reg))
	assert.Same(t, first, p.Render())

	p.Release(d)
	assert.Nil(t, p.Render())
	require.NoError(t, p.Build(d, reg))
	assert.NotSame(t, first, p.Render())
}

func TestBuildCompute(t *testing.T) {
	d, reg := newDevice(t)
	p := NewPipeline("equirect", layout.PassEquirect)
	require.NoError(t, p.Build(d, reg))
	assert.Equal(t, PipelineTypeCompute, p.Type())
	require.NotNil(t, p.Compute())
	assert.Equal(t, "cs_equirect_to_cubemap", p.Compute().Descriptor().EntryPoint)

	_, err := p.Descriptor(reg)
	assert.Error(t, err)
}

func TestBuildFailureNamesPipeline(t *testing.T) {
	d, reg := newDevice(t)
	// a fragment stage with no color targets is rejected by the device
	p := NewPipeline("tonemap/none", layout.PassTonemap, WithDepthTestEnabled(false))
	err := p.Build(d, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)
	assert.Contains(t, err.Error(), "tonemap/none")
}

func TestCache(t *testing.T) {
	d, reg := newDevice(t)
	c := NewCache(d, reg)

	a, err := c.Get("tonemap/bgra8unorm", layout.PassTonemap, WithColorFormats(gpu.TextureFormatBGRA8Unorm), WithDepthTestEnabled(false))
	require.NoError(t, err)
	b, err := c.Get("tonemap/bgra8unorm", layout.PassTonemap)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, c.Len())

	_, err = c.Get("tonemap/broken", layout.PassTonemap, WithDepthTestEnabled(false))
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len())

	before := d.LiveResources()
	c.Release()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, before-1, d.LiveResources())
}
