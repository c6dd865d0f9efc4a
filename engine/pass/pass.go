// package pass runs the fixed per-frame render sequence over an extracted RenderWorld:
//
//  1. shadow: one depth pass per light and cube face
//  2. skybox: clears the HDR color target and draws the environment behind everything
//  3. pbr: loads the skybox color, clears depth and draws every render object
//  4. tonemap: resolves the HDR color target into the caller's output view, with no depth buffer
//
// All four are recorded into one command buffer and submitted together, so the device queue orders the shadow
// writes before the PBR pass samples them.
package pass

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/extract"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pbr/engine/shadow"
	"go.uber.org/zap"
)

// Pipeline cache keys. Tone-map pipelines are keyed per output format with TonemapPipelineKey.
const (
	SkyboxPipelineKey = "skybox"
	PBRPipelineKey    = "pbr"
)

const (
	// DefaultExposure is the tone-map exposure multiplier.
	DefaultExposure float32 = 1.0
	// DefaultGamma is the tone-map output gamma.
	DefaultGamma float32 = 2.2
)

// Order is the pass sequence of every frame. A pass's position in Order is the index a pass-stage
// common.StageError carries.
var Order = []layout.Pass{layout.PassShadow, layout.PassSkybox, layout.PassPBR, layout.PassTonemap}

var (
	// ErrNilWorld is returned when Render is called without a RenderWorld.
	ErrNilWorld = errors.New("nil render world")

	// ErrNoOutput is returned when Render is called without an output view.
	ErrNoOutput = errors.New("no output view")

	// ErrZeroSize is returned when a target size has a zero dimension.
	ErrZeroSize = errors.New("target size must be non-zero")

	// ErrMissingBindGroup is returned when the RenderWorld lacks the camera or lights bind group.
	ErrMissingBindGroup = errors.New("render world is missing a bind group")
)

// TonemapPipelineKey returns the cache key of the tone-map pipeline writing format.
//
// Parameters:
//   - format: the output view's texture format
//
// Returns:
//   - string: the key
func TonemapPipelineKey(format gpu.TextureFormat) string {
	return "tonemap/" + format.String()
}

// Frame summarises one rendered frame.
type Frame struct {
	// Passes lists the recorded pass labels in submission order.
	Passes      []string
	ShadowFaces int
	Draws       int
	Objects     int
	Lights      int
}

// renderPipeline is the implementation of the Pipeline interface.
type renderPipeline struct {
	mu       *sync.Mutex
	logger   *zap.Logger
	device   gpu.Device
	registry layout.Registry
	cache    pipeline.Cache
	shadows  shadow.Shadows

	targets    Targets
	clearColor gpu.Color
	exposure   float32
	gamma      float32

	sampler  *gpu.Sampler
	tonemap  bind_group_provider.BindGroupProvider
	fallback fallbackEnvironment
}

// fallbackEnvironment is a black 1x1 cubemap bound to the PBR environment slot when a frame has no environment.
type fallbackEnvironment struct {
	texture *gpu.Texture
	view    *gpu.TextureView
	group   bind_group_provider.BindGroupProvider
}

// Pipeline defines the interface for the frame's pass sequence and the size-dependent targets it owns.
type Pipeline interface {
	// Render records Order over world into one command buffer and submits it. The tone-map pass writes to output,
	// which must stay valid until the device has consumed the submission.
	//
	// Parameters:
	//   - world: the extracted frame
	//   - output: the final color target, typically the acquired swap-chain view
	//
	// Returns:
	//   - Frame: what was recorded
	//   - error: a common.StageError in the pass or shadow stage
	Render(world *extract.RenderWorld, output *gpu.TextureView) (Frame, error)

	// Record records Order over world into encoder without submitting.
	//
	// Parameters:
	//   - encoder: the encoder to record into
	//   - world: the extracted frame
	//   - output: the final color target
	//
	// Returns:
	//   - Frame: what was recorded
	//   - error: a common.StageError in the pass or shadow stage
	Record(encoder *gpu.CommandEncoder, world *extract.RenderWorld, output *gpu.TextureView) (Frame, error)

	// Resize recreates the HDR color and depth targets for a new output size. Nothing else is touched; shadow
	// cubemaps have a fixed size. Resizing to the current size is a no-op.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: ErrZeroSize or a target creation error
	Resize(width, height uint32) error

	// Targets returns the current size-dependent targets.
	Targets() Targets

	// SetExposure sets the tone-map exposure used from the next frame on.
	SetExposure(exposure float32)

	// Exposure returns the tone-map exposure.
	Exposure() float32

	// SetClearColor sets the color the skybox pass clears the HDR target to.
	SetClearColor(c gpu.Color)

	// Release frees the targets and every resource the pipeline owns. Cached pipelines belong to the cache.
	Release()
}

var _ Pipeline = &renderPipeline{}

// NewPipeline creates the pass pipeline with HDR targets of the given size.
//
// Parameters:
//   - device: the device to render with
//   - registry: the layout registry of device
//   - cache: the pipeline cache of device
//   - shadows: the shadow subsystem whose cubemaps the shadow pass renders
//   - width: the initial output width
//   - height: the initial output height
//   - options: functional options such as WithExposure and WithLogger
//
// Returns:
//   - Pipeline: the pass pipeline
//   - error: a common.StageError in the pass stage
func NewPipeline(device gpu.Device, registry layout.Registry, cache pipeline.Cache, shadows shadow.Shadows, width, height uint32, options ...PipelineBuilderOption) (Pipeline, error) {
	r := &renderPipeline{
		mu:       &sync.Mutex{},
		logger:   zap.NewNop(),
		device:   device,
		registry: registry,
		cache:    cache,
		shadows:  shadows,
		exposure: DefaultExposure,
		gamma:    DefaultGamma,
	}
	for _, opt := range options {
		opt(r)
	}
	fail := func(err error) (Pipeline, error) {
		r.Release()
		return nil, common.NewStageError(common.StagePass, common.SubjectNone, 0, err)
	}
	if width == 0 || height == 0 {
		return fail(ErrZeroSize)
	}

	var err error
	if r.targets, err = newTargets(device, width, height); err != nil {
		return fail(err)
	}
	r.sampler, err = device.CreateSampler(common.SamplerStagingData{
		AddressMode: gpu.AddressModeClampToEdge,
		MagFilter:   gpu.FilterModeLinear,
		MinFilter:   gpu.FilterModeLinear,
	}.Descriptor("tonemap"))
	if err != nil {
		return fail(fmt.Errorf("failed to create tone-map sampler: %w", err))
	}

	r.tonemap = bind_group_provider.NewBindGroupProvider("tonemap", layout.BindGroupTonemap,
		bind_group_provider.WithTextureView(layout.TonemapBindingHDR, r.targets.ColorView),
		bind_group_provider.WithSampler(layout.TonemapBindingSampler, r.sampler),
	)
	if err := r.tonemap.Init(device, registry); err != nil {
		return fail(err)
	}
	if err := r.initFallback(); err != nil {
		return fail(err)
	}

	if _, err := cache.Get(SkyboxPipelineKey, layout.PassSkybox,
		pipeline.WithColorFormats(HDRFormat),
		pipeline.WithDepthTestEnabled(false),
	); err != nil {
		return fail(err)
	}
	if _, err := cache.Get(PBRPipelineKey, layout.PassPBR,
		pipeline.WithColorFormats(HDRFormat),
		pipeline.WithDepthFormat(DepthFormat),
		pipeline.WithCullMode(gpu.CullModeBack),
	); err != nil {
		return fail(err)
	}
	r.logger.Debug("created pass pipeline", zap.Uint32("width", width), zap.Uint32("height", height))
	return r, nil
}

func (r *renderPipeline) initFallback() error {
	tex, err := r.device.CreateTexture(gpu.TextureDescriptor{
		Label:  "fallback_environment",
		Width:  1,
		Height: 1,
		Layers: common.CubeFaceCount,
		Format: HDRFormat,
		Usage:  gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create fallback environment: %w", err)
	}
	r.fallback.texture = tex
	if r.fallback.view, err = r.device.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: "fallback_environment_cube", Dimension: gpu.TextureViewDimensionCube}); err != nil {
		return fmt.Errorf("failed to create fallback environment view: %w", err)
	}
	r.fallback.group = bind_group_provider.NewBindGroupProvider("fallback_environment", layout.BindGroupEnvironment,
		bind_group_provider.WithSampler(layout.EnvironmentBindingSampler, r.sampler),
		bind_group_provider.WithTextureView(layout.EnvironmentBindingIrradiance, r.fallback.view),
		bind_group_provider.WithTextureView(layout.EnvironmentBindingCube, r.fallback.view),
	)
	if err := r.fallback.group.Init(r.device, r.registry); err != nil {
		r.fallback.group = nil
		return err
	}
	return nil
}

func (r *renderPipeline) Render(world *extract.RenderWorld, output *gpu.TextureView) (Frame, error) {
	encoder := gpu.NewCommandEncoder("frame")
	frame, err := r.Record(encoder, world, output)
	if err != nil {
		return frame, err
	}
	cb, err := encoder.Finish()
	if err != nil {
		return frame, common.NewStageError(common.StagePass, common.SubjectNone, 0, err)
	}
	if err := r.device.Submit(cb); err != nil {
		r.logger.Error("frame submission failed", zap.Error(err))
		return frame, common.NewStageError(common.StagePass, common.SubjectNone, 0, err)
	}
	return frame, nil
}

func (r *renderPipeline) Record(encoder *gpu.CommandEncoder, world *extract.RenderWorld, output *gpu.TextureView) (Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var frame Frame
	if world == nil {
		return frame, common.NewStageError(common.StagePass, common.SubjectNone, 0, ErrNilWorld)
	}
	if output == nil {
		return frame, common.NewStageError(common.StagePass, common.SubjectPass, passIndex(layout.PassTonemap), ErrNoOutput)
	}
	if world.Camera == nil || world.Lights == nil {
		return frame, common.NewStageError(common.StagePass, common.SubjectPass, passIndex(layout.PassPBR), ErrMissingBindGroup)
	}
	frame.Objects = len(world.Objects)
	frame.Lights = world.LightCount

	for _, p := range Order {
		var err error
		switch p {
		case layout.PassShadow:
			err = r.recordShadow(encoder, world, &frame)
		case layout.PassSkybox:
			err = r.recordSkybox(encoder, world, &frame)
		case layout.PassPBR:
			err = r.recordPBR(encoder, world, &frame)
		case layout.PassTonemap:
			err = r.recordTonemap(encoder, output, &frame)
		}
		if err != nil {
			var stageErr *common.StageError
			if errors.As(err, &stageErr) {
				return frame, err
			}
			return frame, common.NewStageError(common.StagePass, common.SubjectPass, passIndex(p), fmt.Errorf("%s: %w", p, err))
		}
	}
	return frame, nil
}

func passIndex(p layout.Pass) int {
	for i, o := range Order {
		if o == p {
			return i
		}
	}
	return -1
}

func (r *renderPipeline) recordShadow(encoder *gpu.CommandEncoder, world *extract.RenderWorld, frame *Frame) error {
	if len(world.Shadows) == 0 {
		return nil
	}
	before := len(encoder.PassLabels())
	if err := r.shadows.Record(encoder, world.Shadows, world.Casters()); err != nil {
		return err
	}
	frame.Passes = append(frame.Passes, encoder.PassLabels()[before:]...)
	frame.ShadowFaces = len(world.Shadows) * common.CubeFaceCount
	frame.Draws += frame.ShadowFaces * len(world.Objects)
	return nil
}

func (r *renderPipeline) recordSkybox(encoder *gpu.CommandEncoder, world *extract.RenderWorld, frame *Frame) error {
	p, err := r.cache.Get(SkyboxPipelineKey, layout.PassSkybox)
	if err != nil {
		return err
	}
	pass := encoder.BeginRenderPass(gpu.RenderPassDescriptor{
		Label: layout.PassSkybox.String(),
		ColorAttachments: []gpu.ColorAttachment{{
			View:       r.targets.ColorView,
			LoadOp:     gpu.LoadOpClear,
			ClearValue: r.clearColor,
		}},
	})
	if world.Skybox != nil {
		pass.SetPipeline(p.Render())
		pass.SetBindGroup(layout.PassSkybox.Slot(layout.BindGroupCamera), world.Camera.BindGroup())
		pass.SetBindGroup(layout.PassSkybox.Slot(layout.BindGroupSkybox), world.Skybox.BindGroup())
		pass.Draw(3, 1)
		frame.Draws++
	}
	pass.End()
	frame.Passes = append(frame.Passes, layout.PassSkybox.String())
	return nil
}

func (r *renderPipeline) recordPBR(encoder *gpu.CommandEncoder, world *extract.RenderWorld, frame *Frame) error {
	p, err := r.cache.Get(PBRPipelineKey, layout.PassPBR)
	if err != nil {
		return err
	}
	env := r.fallback.group
	if world.Environment != nil {
		env = world.Environment
	}

	pass := encoder.BeginRenderPass(gpu.RenderPassDescriptor{
		Label: layout.PassPBR.String(),
		ColorAttachments: []gpu.ColorAttachment{{
			View:   r.targets.ColorView,
			LoadOp: gpu.LoadOpLoad,
		}},
		DepthAttachment: &gpu.DepthAttachment{
			View:       r.targets.DepthView,
			LoadOp:     gpu.LoadOpClear,
			ClearValue: 1,
		},
	})
	pass.SetPipeline(p.Render())
	pass.SetBindGroup(layout.PassPBR.Slot(layout.BindGroupCamera), world.Camera.BindGroup())
	pass.SetBindGroup(layout.PassPBR.Slot(layout.BindGroupLights), world.Lights.BindGroup())
	pass.SetBindGroup(layout.PassPBR.Slot(layout.BindGroupEnvironment), env.BindGroup())

	transformSlot := layout.PassPBR.Slot(layout.BindGroupTransform)
	materialSlot := layout.PassPBR.Slot(layout.BindGroupMaterial)
	for _, o := range world.Objects {
		if o.MaterialIndex < 0 || o.MaterialIndex >= len(world.Materials) {
			pass.End()
			return common.NewStageError(common.StagePass, common.SubjectEntity, o.EntityIndex,
				fmt.Errorf("node %s primitive %d: material %d of %d", o.NodeID, o.Primitive, o.MaterialIndex, len(world.Materials)))
		}
		pass.SetBindGroup(transformSlot, o.Transform.BindGroup())
		pass.SetBindGroup(materialSlot, world.Materials[o.MaterialIndex].Group.BindGroup())
		pass.SetVertexBuffer(0, o.Geometry.Vertices)
		pass.SetIndexBuffer(o.Geometry.Indices)
		pass.DrawIndexed(o.Geometry.IndexCount, 1)
		frame.Draws++
	}
	pass.End()
	frame.Passes = append(frame.Passes, layout.PassPBR.String())
	return nil
}

func (r *renderPipeline) recordTonemap(encoder *gpu.CommandEncoder, output *gpu.TextureView, frame *Frame) error {
	format := output.Texture().Format()
	p, err := r.cache.Get(TonemapPipelineKey(format), layout.PassTonemap,
		pipeline.WithColorFormats(format),
		pipeline.WithDepthTestEnabled(false),
	)
	if err != nil {
		return err
	}
	if _, err := r.tonemap.WriteIfChanged(layout.TonemapBindingParams, r.tonemapParams()); err != nil {
		return err
	}

	pass := encoder.BeginRenderPass(gpu.RenderPassDescriptor{
		Label: layout.PassTonemap.String(),
		ColorAttachments: []gpu.ColorAttachment{{
			View:       output,
			LoadOp:     gpu.LoadOpClear,
			ClearValue: gpu.Color{A: 1},
		}},
	})
	pass.SetPipeline(p.Render())
	pass.SetBindGroup(layout.PassTonemap.Slot(layout.BindGroupTonemap), r.tonemap.BindGroup())
	pass.Draw(3, 1)
	pass.End()
	frame.Draws++
	frame.Passes = append(frame.Passes, layout.PassTonemap.String())
	return nil
}

// tonemapParams packs exposure and gamma into the tone-map uniform.
func (r *renderPipeline) tonemapParams() []byte {
	buf := make([]byte, layout.TonemapUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(r.exposure))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(r.gamma))
	return buf
}

func (r *renderPipeline) Resize(width, height uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == 0 || height == 0 {
		return common.NewStageError(common.StagePass, common.SubjectNone, 0, ErrZeroSize)
	}
	if width == r.targets.Width && height == r.targets.Height {
		return nil
	}

	next, err := newTargets(r.device, width, height)
	if err != nil {
		return common.NewStageError(common.StagePass, common.SubjectNone, 0, err)
	}
	r.tonemap.SetTextureView(layout.TonemapBindingHDR, next.ColorView)
	if _, err := r.tonemap.Commit(); err != nil {
		r.tonemap.SetTextureView(layout.TonemapBindingHDR, r.targets.ColorView)
		next.release(r.device)
		return common.NewStageError(common.StagePass, common.SubjectPass, passIndex(layout.PassTonemap), err)
	}
	prev := r.targets
	fromWidth, fromHeight := prev.Width, prev.Height
	r.targets = next
	prev.release(r.device)

	r.logger.Debug("recreated HDR targets",
		zap.Uint32("from_width", fromWidth),
		zap.Uint32("from_height", fromHeight),
		zap.Uint32("width", width),
		zap.Uint32("height", height),
	)
	return nil
}

func (r *renderPipeline) Targets() Targets {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targets
}

func (r *renderPipeline) SetExposure(exposure float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if exposure > 0 {
		r.exposure = exposure
	}
}

func (r *renderPipeline) Exposure() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exposure
}

func (r *renderPipeline) SetClearColor(c gpu.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearColor = c
}

func (r *renderPipeline) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tonemap != nil {
		r.tonemap.Release()
		r.tonemap = nil
	}
	if r.fallback.group != nil {
		r.fallback.group.Release()
	}
	if r.fallback.view != nil {
		r.device.Release(r.fallback.view)
	}
	if r.fallback.texture != nil {
		r.device.Release(r.fallback.texture)
	}
	r.fallback = fallbackEnvironment{}
	if r.sampler != nil {
		r.device.Release(r.sampler)
		r.sampler = nil
	}
	r.targets.release(r.device)
}
