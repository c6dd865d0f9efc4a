package software

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T) Device {
	t.Helper()
	d := NewDevice(WithWorkers(4))
	t.Cleanup(d.Close)
	return d
}

func floatBytes(values ...float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func uintBytes(values ...uint32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func TestBufferLifecycle(t *testing.T) {
	d := newTestDevice(t)
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "b", Size: 8, Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst})
	require.NoError(t, err)
	assert.Equal(t, 1, d.LiveResources())

	require.NoError(t, d.WriteBuffer(buf, 4, []byte{1, 2, 3, 4}))
	data, err := d.ReadBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, data)
	assert.Equal(t, 1, d.BufferWrites(buf))

	assert.Error(t, d.WriteBuffer(buf, 6, []byte{1, 2, 3}))
	assert.Equal(t, 1, d.BufferWrites(buf))

	d.Release(buf)
	assert.Equal(t, 0, d.LiveResources())
	assert.ErrorIs(t, d.WriteBuffer(buf, 0, []byte{1}), gpu.ErrUnknownResource)
	_, err = d.ReadBuffer(buf)
	assert.ErrorIs(t, err, gpu.ErrUnknownResource)

	_, err = d.CreateBuffer(gpu.BufferDescriptor{Label: "empty", Usage: gpu.BufferUsageUniform})
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)
}

func TestWriteTextureDecodesFormats(t *testing.T) {
	d := newTestDevice(t)

	half, err := d.CreateTexture(gpu.TextureDescriptor{Label: "half", Width: 1, Height: 1, Layers: 2, Format: gpu.TextureFormatRGBA16Float, Usage: gpu.TextureUsageCopyDst})
	require.NoError(t, err)
	require.NoError(t, d.WriteTexture(half, 1, EncodeRGBA16Float([]float32{0.5, 2, -1, 1})))
	texels, err := d.ReadTextureLayer(half, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 2, -1, 1}, texels)
	texels, err = d.ReadTextureLayer(half, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, texels)

	bgra, err := d.CreateTexture(gpu.TextureDescriptor{Label: "bgra", Width: 1, Height: 1, Layers: 1, Format: gpu.TextureFormatBGRA8Unorm, Usage: gpu.TextureUsageCopyDst})
	require.NoError(t, err)
	require.NoError(t, d.WriteTexture(bgra, 0, []byte{0, 0, 255, 255}))
	texels, err = d.ReadTextureLayer(bgra, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 1}, texels)

	assert.Error(t, d.WriteTexture(bgra, 0, []byte{1, 2}))
	assert.Error(t, d.WriteTexture(bgra, 3, []byte{1, 2, 3, 4}))
}

func TestCreateBindGroupChecksResources(t *testing.T) {
	d := newTestDevice(t)
	reg := layout.NewRegistry(d)
	l, err := reg.Layout(layout.BindGroupShadowFace)
	require.NoError(t, err)

	small, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "small", Size: 16, Usage: gpu.BufferUsageUniform})
	require.NoError(t, err)
	_, err = d.CreateBindGroup(gpu.BindGroupDescriptor{Label: "g", Layout: l, Entries: []gpu.BindGroupEntry{{Binding: 0, Buffer: small}}})
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)

	released, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "released", Size: layout.ShadowFaceUniformSize, Usage: gpu.BufferUsageUniform})
	require.NoError(t, err)
	d.Release(released)
	_, err = d.CreateBindGroup(gpu.BindGroupDescriptor{Label: "g", Layout: l, Entries: []gpu.BindGroupEntry{{Binding: 0, Buffer: released}}})
	assert.ErrorIs(t, err, gpu.ErrUnknownResource)
}

// depthScene is a 4x4 depth target with a shadow-layout pipeline and identity face and object matrices.
type depthScene struct {
	d        Device
	target   *gpu.Texture
	view     *gpu.TextureView
	pipeline *gpu.RenderPipeline
	face     *gpu.BindGroup
	object   *gpu.BindGroup
}

func newDepthScene(t *testing.T, cull gpu.CullMode) *depthScene {
	t.Helper()
	d := newTestDevice(t)
	reg := layout.NewRegistry(d)
	layouts, err := reg.PipelineLayouts(layout.PassShadow)
	require.NoError(t, err)

	target, err := d.CreateTexture(gpu.TextureDescriptor{Label: "depth", Width: 4, Height: 4, Layers: 1, Format: gpu.TextureFormatDepth32Float, Usage: gpu.TextureUsageRenderAttachment})
	require.NoError(t, err)
	view, err := d.CreateTextureView(target, gpu.TextureViewDescriptor{Label: "depth_view"})
	require.NoError(t, err)

	pipeline, err := d.CreateRenderPipeline(gpu.RenderPipelineDescriptor{
		Label:            "depth_only",
		VertexEntry:      "vs_shadow",
		BindGroupLayouts: layouts,
		VertexBuffers: []gpu.VertexBufferLayout{{
			ArrayStride: 12,
			Attributes:  []gpu.VertexAttribute{{Format: gpu.VertexFormatFloat32x3, ShaderLocation: 0}},
		}},
		Depth:    &gpu.DepthState{Format: gpu.TextureFormatDepth32Float, WriteEnabled: true, Compare: gpu.CompareFunctionLess},
		CullMode: cull,
	})
	require.NoError(t, err)

	faceBuf, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "face", Size: layout.ShadowFaceUniformSize, Usage: gpu.BufferUsageUniform})
	require.NoError(t, err)
	objectBuf, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "object", Size: layout.TransformUniformSize, Usage: gpu.BufferUsageUniform})
	require.NoError(t, err)
	ident := make([]byte, 64)
	common.PutMat4(ident, mgl32.Ident4())
	require.NoError(t, d.WriteBuffer(faceBuf, 0, ident))
	require.NoError(t, d.WriteBuffer(objectBuf, 0, ident))

	face, err := d.CreateBindGroup(gpu.BindGroupDescriptor{Label: "face_group", Layout: layouts[0], Entries: []gpu.BindGroupEntry{{Binding: 0, Buffer: faceBuf}}})
	require.NoError(t, err)
	object, err := d.CreateBindGroup(gpu.BindGroupDescriptor{Label: "object_group", Layout: layouts[1], Entries: []gpu.BindGroupEntry{{Binding: 0, Buffer: objectBuf}}})
	require.NoError(t, err)

	return &depthScene{d: d, target: target, view: view, pipeline: pipeline, face: face, object: object}
}

// draw renders triangles given as NDC positions after clearing the target to 1.
func (s *depthScene) draw(t *testing.T, positions []float32, indices []uint32, setGroups bool) error {
	t.Helper()
	vb, err := s.d.CreateBuffer(gpu.BufferDescriptor{Label: "vb", Size: uint64(len(positions) * 4), Usage: gpu.BufferUsageVertex})
	require.NoError(t, err)
	require.NoError(t, s.d.WriteBuffer(vb, 0, floatBytes(positions...)))
	ib, err := s.d.CreateBuffer(gpu.BufferDescriptor{Label: "ib", Size: uint64(len(indices) * 4), Usage: gpu.BufferUsageIndex})
	require.NoError(t, err)
	require.NoError(t, s.d.WriteBuffer(ib, 0, uintBytes(indices...)))

	enc := gpu.NewCommandEncoder("frame")
	pass := enc.BeginRenderPass(gpu.RenderPassDescriptor{
		Label:           "depth_pass",
		DepthAttachment: &gpu.DepthAttachment{View: s.view, LoadOp: gpu.LoadOpClear, ClearValue: 1},
	})
	pass.SetPipeline(s.pipeline)
	if setGroups {
		pass.SetBindGroup(0, s.face)
		pass.SetBindGroup(1, s.object)
	}
	pass.SetVertexBuffer(0, vb)
	pass.SetIndexBuffer(ib)
	pass.DrawIndexed(uint32(len(indices)), 1)
	pass.End()
	cb, err := enc.Finish()
	require.NoError(t, err)
	return s.d.Submit(cb)
}

// leftHalf is a counter-clockwise quad covering x in [-1, 0] at depth 0.25.
var leftHalf = []float32{
	-1, -1, 0.25,
	0, -1, 0.25,
	0, 1, 0.25,
	-1, 1, 0.25,
}

func TestDepthRasterization(t *testing.T) {
	s := newDepthScene(t, gpu.CullModeBack)
	require.NoError(t, s.draw(t, leftHalf, []uint32{0, 1, 2, 0, 2, 3}, true))

	depth, err := s.d.ReadTextureLayer(s.target, 0)
	require.NoError(t, err)
	for y := range 4 {
		assert.InDelta(t, 0.25, depth[y*4+0], 1e-6, "row %d left", y)
		assert.InDelta(t, 0.25, depth[y*4+1], 1e-6, "row %d left", y)
		assert.Equal(t, float32(1), depth[y*4+2], "row %d right", y)
		assert.Equal(t, float32(1), depth[y*4+3], "row %d right", y)
	}

	subs := s.d.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "depth_pass", subs[0].Pass)
	assert.Equal(t, s.target.ID(), subs[0].DepthTarget)
	assert.Equal(t, gpu.LoadOpClear, subs[0].DepthLoadOp)
	assert.Equal(t, []string{"depth_only"}, subs[0].Pipelines)
	assert.Equal(t, 1, subs[0].Draws)
}

func TestDepthRasterizationCullsBackFaces(t *testing.T) {
	s := newDepthScene(t, gpu.CullModeBack)
	require.NoError(t, s.draw(t, leftHalf, []uint32{0, 2, 1, 0, 3, 2}, true))

	depth, err := s.d.ReadTextureLayer(s.target, 0)
	require.NoError(t, err)
	for _, v := range depth {
		assert.Equal(t, float32(1), v)
	}
}

func TestDepthRasterizationClipsBehindNearPlane(t *testing.T) {
	s := newDepthScene(t, gpu.CullModeNone)
	// the top edge sits behind the near plane
	quad := []float32{
		-1, -1, 0.5,
		1, -1, 0.5,
		1, 1, -0.5,
		-1, 1, -0.5,
	}
	require.NoError(t, s.draw(t, quad, []uint32{0, 1, 2, 0, 2, 3}, true))

	depth, err := s.d.ReadTextureLayer(s.target, 0)
	require.NoError(t, err)
	assert.Less(t, depth[3*4+1], float32(1), "bottom row is in front of the near plane")
	assert.Equal(t, float32(1), depth[0*4+1], "top row is clipped")
	for _, v := range depth {
		assert.GreaterOrEqual(t, v, float32(0))
	}
}

func TestDrawWithoutBindGroupsFails(t *testing.T) {
	s := newDepthScene(t, gpu.CullModeNone)
	err := s.draw(t, leftHalf, []uint32{0, 1, 2}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth_pass")
	assert.Contains(t, err.Error(), "slot 0")
	assert.Empty(t, s.d.Submissions())
}

func TestClipNear(t *testing.T) {
	poly := clipNear([]mgl32.Vec4{{0, 0, 1, 1}, {1, 0, 1, 1}, {0, 1, -1, 1}})
	require.Len(t, poly, 4)
	for _, v := range poly {
		assert.GreaterOrEqual(t, v.Z(), float32(0))
	}
	assert.Empty(t, clipNear([]mgl32.Vec4{{0, 0, -1, 1}, {1, 0, -1, 1}, {0, 1, -1, 1}}))
}

// cubeTarget creates a 6-layer RGBA16Float storage cube with a 2D-array storage view and a cube sampling view.
func cubeTarget(t *testing.T, d Device, label string, size uint32) (*gpu.Texture, *gpu.TextureView, *gpu.TextureView) {
	t.Helper()
	tex, err := d.CreateTexture(gpu.TextureDescriptor{
		Label: label, Width: size, Height: size, Layers: 6, Format: gpu.TextureFormatRGBA16Float,
		Usage: gpu.TextureUsageStorageBinding | gpu.TextureUsageTextureBinding,
	})
	require.NoError(t, err)
	storage, err := d.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: label + "_storage", Dimension: gpu.TextureViewDimension2DArray})
	require.NoError(t, err)
	cube, err := d.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: label + "_cube", Dimension: gpu.TextureViewDimensionCube})
	require.NoError(t, err)
	return tex, storage, cube
}

func dispatch(t *testing.T, d Device, entry string, group *gpu.BindGroup, wg [3]uint32) {
	t.Helper()
	layouts := []*gpu.BindGroupLayout{group.Layout()}
	pipeline, err := d.CreateComputePipeline(gpu.ComputePipelineDescriptor{Label: entry, EntryPoint: entry, BindGroupLayouts: layouts})
	require.NoError(t, err)

	enc := gpu.NewCommandEncoder(entry)
	pass := enc.BeginComputePass(entry)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group)
	pass.DispatchWorkgroups(wg[0], wg[1], wg[2])
	pass.End()
	cb, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Submit(cb))
}

func TestEquirectKernelFillsEveryFace(t *testing.T) {
	d := newTestDevice(t)
	reg := layout.NewRegistry(d)
	l, err := reg.Layout(layout.BindGroupEquirect)
	require.NoError(t, err)

	img := &common.HDRImage{Width: 4, Height: 2, Pixels: make([]float32, 4*2*4)}
	for y := range 2 {
		for x := range 4 {
			img.Set(x, y, [4]float32{0.25, 0.5, 2, 1})
		}
	}
	src, err := d.CreateTexture(gpu.TextureDescriptor{Label: "equirect", Width: 4, Height: 2, Layers: 1, Format: gpu.TextureFormatRGBA32Float, Usage: gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst})
	require.NoError(t, err)
	require.NoError(t, d.WriteTexture(src, 0, img.Marshal()))
	srcView, err := d.CreateTextureView(src, gpu.TextureViewDescriptor{Label: "equirect_view"})
	require.NoError(t, err)

	cube, storage, _ := cubeTarget(t, d, "env", 8)
	group, err := d.CreateBindGroup(gpu.BindGroupDescriptor{Label: "equirect_group", Layout: l, Entries: []gpu.BindGroupEntry{
		{Binding: layout.EquirectBindingSource, TextureView: srcView},
		{Binding: layout.EquirectBindingTarget, TextureView: storage},
	}})
	require.NoError(t, err)

	dispatch(t, d, "cs_equirect_to_cubemap", group, [3]uint32{1, 1, 6})

	for face := range uint32(6) {
		texels, err := d.ReadTextureLayer(cube, face)
		require.NoError(t, err)
		for i := 0; i < len(texels); i += 4 {
			assert.Equal(t, []float32{0.25, 0.5, 2, 1}, texels[i:i+4], "face %d texel %d", face, i/4)
		}
	}
	subs := d.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, [][3]uint32{{1, 1, 6}}, subs[0].Dispatches)
}

func TestEquirectKernelSamplesByDirection(t *testing.T) {
	d := newTestDevice(t)
	l, err := layout.NewRegistry(d).Layout(layout.BindGroupEquirect)
	require.NoError(t, err)

	// top half of the image is the sky, bottom half the ground
	img := &common.HDRImage{Width: 4, Height: 2, Pixels: make([]float32, 4*2*4)}
	for x := range 4 {
		img.Set(x, 0, [4]float32{1, 0, 0, 1})
		img.Set(x, 1, [4]float32{0, 0, 1, 1})
	}
	src, err := d.CreateTexture(gpu.TextureDescriptor{Label: "equirect", Width: 4, Height: 2, Layers: 1, Format: gpu.TextureFormatRGBA32Float, Usage: gpu.TextureUsageTextureBinding})
	require.NoError(t, err)
	require.NoError(t, d.WriteTexture(src, 0, img.Marshal()))
	srcView, err := d.CreateTextureView(src, gpu.TextureViewDescriptor{Label: "equirect_view"})
	require.NoError(t, err)
	cube, storage, _ := cubeTarget(t, d, "env", 4)
	group, err := d.CreateBindGroup(gpu.BindGroupDescriptor{Label: "equirect_group", Layout: l, Entries: []gpu.BindGroupEntry{
		{Binding: layout.EquirectBindingSource, TextureView: srcView},
		{Binding: layout.EquirectBindingTarget, TextureView: storage},
	}})
	require.NoError(t, err)

	dispatch(t, d, "cs_equirect_to_cubemap", group, [3]uint32{1, 1, 6})

	up, err := d.ReadTextureLayer(cube, uint32(common.CubeFacePositiveY))
	require.NoError(t, err)
	assert.Equal(t, float32(1), up[0])
	down, err := d.ReadTextureLayer(cube, uint32(common.CubeFaceNegativeY))
	require.NoError(t, err)
	assert.Equal(t, float32(1), down[2])
}

func TestIrradianceOfConstantEnvironmentIsConstant(t *testing.T) {
	d := newTestDevice(t)
	reg := layout.NewRegistry(d)
	l, err := reg.Layout(layout.BindGroupIrradiance)
	require.NoError(t, err)

	env, _, envCube := cubeTarget(t, d, "env", 4)
	texels := make([]float32, 4*4*4)
	for i := 0; i < len(texels); i += 4 {
		copy(texels[i:], []float32{0.5, 1, 2, 1})
	}
	for face := range uint32(6) {
		require.NoError(t, d.WriteTexture(env, face, EncodeRGBA16Float(texels)))
	}
	irr, irrStorage, _ := cubeTarget(t, d, "irradiance", 2)
	sampler, err := d.CreateSampler(gpu.SamplerDescriptor{Label: "linear", MagFilter: gpu.FilterModeLinear, MinFilter: gpu.FilterModeLinear})
	require.NoError(t, err)
	params, err := d.CreateBuffer(gpu.BufferDescriptor{Label: "params", Size: layout.IrradianceParamsSize, Usage: gpu.BufferUsageUniform})
	require.NoError(t, err)
	p := uintBytes(2)
	p = append(p, floatBytes(0.1, 0, 0)...)
	require.NoError(t, d.WriteBuffer(params, 0, p))

	group, err := d.CreateBindGroup(gpu.BindGroupDescriptor{Label: "irradiance_group", Layout: l, Entries: []gpu.BindGroupEntry{
		{Binding: layout.IrradianceBindingSource, TextureView: envCube},
		{Binding: layout.IrradianceBindingSampler, Sampler: sampler},
		{Binding: layout.IrradianceBindingTarget, TextureView: irrStorage},
		{Binding: layout.IrradianceBindingParams, Buffer: params},
	}})
	require.NoError(t, err)

	dispatch(t, d, "cs_irradiance", group, [3]uint32{1, 1, 6})

	for face := range uint32(6) {
		out, err := d.ReadTextureLayer(irr, face)
		require.NoError(t, err)
		for i := 0; i < len(out); i += 4 {
			assert.InDelta(t, 0.5, out[i], 0.03, "face %d", face)
			assert.InDelta(t, 1.0, out[i+1], 0.06, "face %d", face)
			assert.InDelta(t, 2.0, out[i+2], 0.12, "face %d", face)
			assert.Equal(t, float32(1), out[i+3])
		}
	}
}

func TestParallelReportsPanics(t *testing.T) {
	d := NewDevice(WithWorkers(2)).(*device)
	defer d.Close()

	err := d.parallel(4, func(i int) error {
		if i == 2 {
			panic("bad band")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad band")

	count := make([]int, 8)
	require.NoError(t, d.parallel(8, func(i int) error {
		count[i]++
		return nil
	}))
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1}, count)
}
