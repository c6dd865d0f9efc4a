package pass

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/camera"
	"github.com/Carmen-Shannon/oxy-pbr/engine/environment"
	"github.com/Carmen-Shannon/oxy-pbr/engine/extract"
	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
	"github.com/Carmen-Shannon/oxy-pbr/engine/model"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-pbr/engine/scene"
	"github.com/Carmen-Shannon/oxy-pbr/engine/shadow"
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	device    software.Device
	registry  layout.Registry
	cache     pipeline.Cache
	shadows   shadow.Shadows
	extractor extract.Extractor
	pipeline  Pipeline
}

func newFixture(t *testing.T, width, height uint32, shadowOptions ...shadow.ShadowsBuilderOption) *fixture {
	t.Helper()
	d := software.NewDevice(software.WithWorkers(2))
	t.Cleanup(d.Close)
	reg := layout.NewRegistry(d)
	cache := pipeline.NewCache(d, reg)
	s, err := shadow.NewShadows(d, reg, cache, shadowOptions...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	x, err := extract.NewExtractor(d, reg, s)
	require.NoError(t, err)
	t.Cleanup(x.Release)
	p, err := NewPipeline(d, reg, cache, s, width, height)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return &fixture{device: d, registry: reg, cache: cache, shadows: s, extractor: x, pipeline: p}
}

func (f *fixture) output(t *testing.T, format gpu.TextureFormat, width, height uint32) *gpu.TextureView {
	t.Helper()
	tex, err := f.device.CreateTexture(gpu.TextureDescriptor{
		Label:  "swapchain",
		Width:  width,
		Height: height,
		Layers: 1,
		Format: format,
		Usage:  gpu.TextureUsageRenderAttachment,
	})
	require.NoError(t, err)
	view, err := f.device.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: "swapchain_view"})
	require.NoError(t, err)
	return view
}

func testScene(lights ...light.PointLight) extract.Snapshot {
	cube := model.Cube(0.5)
	floor := model.Plane(5)
	entities := []scene.Entity{
		scene.NewEntity(
			[]*scene.Node{scene.NewMeshNode(scene.Mesh{Primitives: []scene.Primitive{{Geometry: floor, Material: 0}}})},
			[]material.Material{material.NewMaterial(material.WithName("floor"))},
		),
		scene.NewEntity(
			[]*scene.Node{scene.NewMeshNode(scene.Mesh{Primitives: []scene.Primitive{{Geometry: cube, Material: 1}}})},
			[]material.Material{material.NewMaterial(), material.NewMaterial(material.WithMetallic(1))},
			scene.WithEntityTransform(transform.FromTranslation(0, 1, 0)),
		),
	}
	return extract.Snapshot{Entities: extract.EntitiesOf(entities), Camera: camera.NewCamera(), Lights: light.StatesOf(lights)}
}

func TestRenderOrdersPasses(t *testing.T) {
	f := newFixture(t, 8, 6, shadow.WithResolution(4))
	src, err := environment.Procedural(16, 8, [3]float32{1, 1, 1}, [3]float32{0.1, 0.1, 0.1})
	require.NoError(t, err)
	env, err := environment.Build(f.device, f.registry, f.cache, src, environment.WithCubemapSize(8), environment.WithIrradianceSize(4))
	require.NoError(t, err)
	t.Cleanup(env.Release)

	world, err := f.extractor.Extract(testScene(light.NewPointLight(light.WithPosition(0, 4, 0))), env)
	require.NoError(t, err)
	out := f.output(t, gpu.TextureFormatBGRA8Unorm, 8, 6)
	f.device.ResetSubmissions()

	frame, err := f.pipeline.Render(world, out)
	require.NoError(t, err)
	assert.Equal(t, 6, frame.ShadowFaces)
	assert.Equal(t, 2, frame.Objects)
	assert.Equal(t, 1, frame.Lights)
	assert.Equal(t, 6*2+1+2+1, frame.Draws)

	subs := f.device.Submissions()
	require.Len(t, subs, 9)
	labels := make([]string, len(subs))
	for i, s := range subs {
		labels[i] = s.Pass
		assert.Equal(t, "frame", s.CommandBuffer, "one command buffer per frame")
	}
	assert.Equal(t, frame.Passes, labels)

	targets := f.pipeline.Targets()
	for _, s := range subs[:6] {
		assert.Equal(t, world.Shadows[0].Texture.ID(), s.DepthTarget)
	}

	sky := subs[6]
	assert.Equal(t, "skybox", sky.Pass)
	assert.Equal(t, []gpu.ResourceID{targets.Color.ID()}, sky.ColorTargets)
	assert.Equal(t, []gpu.LoadOp{gpu.LoadOpClear}, sky.ColorLoadOps)
	assert.Equal(t, []string{SkyboxPipelineKey}, sky.Pipelines)

	pbr := subs[7]
	assert.Equal(t, "pbr", pbr.Pass)
	assert.Equal(t, []gpu.LoadOp{gpu.LoadOpLoad}, pbr.ColorLoadOps)
	assert.Equal(t, targets.Depth.ID(), pbr.DepthTarget)
	assert.Equal(t, gpu.LoadOpClear, pbr.DepthLoadOp)
	assert.Equal(t, 2, pbr.Draws)
	for _, s := range subs[:6] {
		assert.Less(t, s.Sequence, pbr.Sequence, "shadow faces are written before the PBR pass samples them")
	}

	tone := subs[8]
	assert.Equal(t, "tonemap", tone.Pass)
	assert.Equal(t, []gpu.ResourceID{out.Texture().ID()}, tone.ColorTargets)
	assert.Equal(t, gpu.ResourceID(0), tone.DepthTarget)
	assert.Equal(t, []string{TonemapPipelineKey(gpu.TextureFormatBGRA8Unorm)}, tone.Pipelines)
}

func TestRenderWithoutEnvironmentOrLights(t *testing.T) {
	f := newFixture(t, 8, 6, shadow.WithResolution(4))
	world, err := f.extractor.Extract(testScene(), nil)
	require.NoError(t, err)
	f.device.ResetSubmissions()

	frame, err := f.pipeline.Render(world, f.output(t, gpu.TextureFormatRGBA8Unorm, 8, 6))
	require.NoError(t, err)
	assert.Equal(t, []string{"skybox", "pbr", "tonemap"}, frame.Passes)
	assert.Zero(t, frame.ShadowFaces)

	subs := f.device.Submissions()
	require.Len(t, subs, 3)
	assert.Empty(t, subs[0].Pipelines, "no skybox draw without an environment")
	assert.Equal(t, []gpu.LoadOp{gpu.LoadOpClear}, subs[0].ColorLoadOps)
	assert.Equal(t, 2, subs[1].Draws)
}

func TestTonemapPipelinePerOutputFormat(t *testing.T) {
	f := newFixture(t, 4, 4, shadow.WithResolution(4))
	world, err := f.extractor.Extract(testScene(), nil)
	require.NoError(t, err)
	base := f.cache.Len()

	_, err = f.pipeline.Render(world, f.output(t, gpu.TextureFormatBGRA8Unorm, 4, 4))
	require.NoError(t, err)
	_, err = f.pipeline.Render(world, f.output(t, gpu.TextureFormatBGRA8Unorm, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, base+1, f.cache.Len())

	_, err = f.pipeline.Render(world, f.output(t, gpu.TextureFormatRGBA8UnormSrgb, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, base+2, f.cache.Len())
}

func TestRenderErrorsNamePass(t *testing.T) {
	f := newFixture(t, 4, 4, shadow.WithResolution(4))
	var stageErr *common.StageError

	_, err := f.pipeline.Render(nil, f.output(t, gpu.TextureFormatBGRA8Unorm, 4, 4))
	require.ErrorAs(t, err, &stageErr)
	assert.ErrorIs(t, err, ErrNilWorld)

	world, err := f.extractor.Extract(testScene(), nil)
	require.NoError(t, err)
	_, err = f.pipeline.Render(world, nil)
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, common.StagePass, stageErr.Stage)
	assert.Equal(t, common.SubjectPass, stageErr.Subject)
	assert.Equal(t, 3, stageErr.Index)
	assert.ErrorIs(t, err, ErrNoOutput)
}

// Growing the output from 800x600 to 1920x1080 replaces the HDR targets and leaves every shadow cubemap alone.
func TestResizeRecreatesOnlyHDRTargets(t *testing.T) {
	f := newFixture(t, 800, 600)
	lights := []light.PointLight{light.NewPointLight(), light.NewPointLight(light.WithPosition(2, 3, 0))}
	cubemaps, err := f.shadows.Prepare(light.StatesOf(lights))
	require.NoError(t, err)
	type cubeHandles struct {
		texture *gpu.Texture
		cube    *gpu.TextureView
		width   uint32
	}
	before := make([]cubeHandles, len(cubemaps))
	for i, c := range cubemaps {
		before[i] = cubeHandles{texture: c.Texture, cube: c.CubeView, width: c.Texture.Width()}
	}
	old := f.pipeline.Targets()
	allocations := f.shadows.Allocations()

	require.NoError(t, f.pipeline.Resize(1920, 1080))

	next := f.pipeline.Targets()
	assert.Equal(t, uint32(1920), next.Width)
	assert.Equal(t, uint32(1080), next.Height)
	assert.Equal(t, uint32(1920), next.Color.Width())
	assert.Equal(t, uint32(1080), next.Depth.Height())
	assert.NotSame(t, old.Color, next.Color)
	assert.NotSame(t, old.Depth, next.Depth)

	assert.Equal(t, allocations, f.shadows.Allocations())
	for i, l := range lights {
		c := f.shadows.Cubemap(l.ID())
		require.NotNil(t, c)
		assert.Same(t, before[i].texture, c.Texture)
		assert.Same(t, before[i].cube, c.CubeView)
		assert.Equal(t, uint32(light.ShadowMapResolution), c.Texture.Width())
		assert.Equal(t, before[i].width, c.Texture.Width())
	}
}

func TestResizeRebindsTonemapInput(t *testing.T) {
	f := newFixture(t, 8, 6, shadow.WithResolution(4))
	world, err := f.extractor.Extract(testScene(), nil)
	require.NoError(t, err)
	live := f.device.LiveResources()

	require.NoError(t, f.pipeline.Resize(16, 12))
	assert.Equal(t, live, f.device.LiveResources(), "old targets are released")
	require.NoError(t, f.pipeline.Resize(16, 12))

	f.device.ResetSubmissions()
	_, err = f.pipeline.Render(world, f.output(t, gpu.TextureFormatBGRA8Unorm, 16, 12))
	require.NoError(t, err)
	subs := f.device.Submissions()
	assert.Equal(t, []gpu.ResourceID{f.pipeline.Targets().Color.ID()}, subs[0].ColorTargets)

	var stageErr *common.StageError
	assert.ErrorAs(t, f.pipeline.Resize(0, 12), &stageErr)
	assert.Equal(t, uint32(16), f.pipeline.Targets().Width)
}

func TestExposure(t *testing.T) {
	f := newFixture(t, 4, 4, shadow.WithResolution(4))
	assert.Equal(t, DefaultExposure, f.pipeline.Exposure())
	f.pipeline.SetExposure(2.5)
	assert.Equal(t, float32(2.5), f.pipeline.Exposure())
	f.pipeline.SetExposure(-1)
	assert.Equal(t, float32(2.5), f.pipeline.Exposure())
}

func TestResizeLogsPreviousSize(t *testing.T) {
	f := newFixture(t, 8, 6, shadow.WithResolution(4))
	core, logs := observer.New(zap.DebugLevel)
	p, err := NewPipeline(f.device, f.registry, f.cache, f.shadows, 8, 6, WithLogger(zap.New(core)))
	require.NoError(t, err)
	t.Cleanup(p.Release)

	require.NoError(t, p.Resize(16, 12))
	entries := logs.FilterMessage("recreated HDR targets").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, uint32(8), fields["from_width"])
	assert.Equal(t, uint32(6), fields["from_height"])
	assert.Equal(t, uint32(16), fields["width"])
	assert.Equal(t, uint32(12), fields["height"])
}
