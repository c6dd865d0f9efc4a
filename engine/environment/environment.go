// package environment precomputes the image based lighting inputs of a scene from one equirectangular HDR image:
// an environment cubemap for the background and specular lookups, and a cosine-convolved irradiance cubemap for
// diffuse lighting. Both are built once with compute dispatches and never change afterwards.
package environment

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/pipeline"
	"go.uber.org/zap"
)

const (
	// DefaultCubemapSize is the default face size of the environment cubemap.
	DefaultCubemapSize uint32 = 512
	// DefaultIrradianceSize is the default face size of the irradiance cubemap.
	DefaultIrradianceSize uint32 = 32
	// DefaultSampleDelta is the default angular step in radians of the irradiance integration.
	DefaultSampleDelta float32 = 0.025
)

// Pipeline cache keys of the two precomputation programs.
const (
	EquirectPipelineKey   = "equirect_to_cubemap"
	IrradiancePipelineKey = "irradiance_convolution"
)

// CubemapFormat is the texel format of both cubemaps.
const CubemapFormat = gpu.TextureFormatRGBA16Float

// cubemap is a six-layer texture with a storage view for writing and a cube view for sampling.
type cubemap struct {
	texture *gpu.Texture
	storage *gpu.TextureView
	cube    *gpu.TextureView
}

// environment is the implementation of the Environment interface.
type environment struct {
	mu     *sync.Mutex
	device gpu.Device

	env        cubemap
	irradiance cubemap
	sampler    *gpu.Sampler
}

// Environment defines the interface for the built environment and irradiance cubemaps. Both are read-only after
// Build returns.
type Environment interface {
	// EnvironmentTexture returns the environment cubemap texture.
	EnvironmentTexture() *gpu.Texture

	// EnvironmentView returns the cube view of the environment cubemap.
	EnvironmentView() *gpu.TextureView

	// IrradianceTexture returns the irradiance cubemap texture.
	IrradianceTexture() *gpu.Texture

	// IrradianceView returns the cube view of the irradiance cubemap.
	IrradianceView() *gpu.TextureView

	// Sampler returns the linear clamp sampler used to read either cubemap.
	Sampler() *gpu.Sampler

	// Release frees both cubemaps and the sampler.
	Release()
}

var _ Environment = &environment{}

// config holds the Build options.
type config struct {
	logger         *zap.Logger
	cubemapSize    uint32
	irradianceSize uint32
	sampleDelta    float32
}

// Build projects source onto the environment cubemap and convolves the result into the irradiance cubemap. Both
// dispatches go out in one command buffer, equirect first; later submissions that sample the maps are queued
// after them.
//
// Parameters:
//   - device: the device to build on
//   - registry: the bind group layout registry of device
//   - cache: the pipeline cache of device
//   - source: the decoded equirectangular HDR image
//   - options: functional options such as WithCubemapSize
//
// Returns:
//   - Environment: the built cubemaps
//   - error: a common.StageError in the environment stage
func Build(device gpu.Device, registry layout.Registry, cache pipeline.Cache, source *common.HDRImage, options ...BuildOption) (Environment, error) {
	cfg := config{
		logger:         zap.NewNop(),
		cubemapSize:    DefaultCubemapSize,
		irradianceSize: DefaultIrradianceSize,
		sampleDelta:    DefaultSampleDelta,
	}
	for _, opt := range options {
		opt(&cfg)
	}
	fail := func(err error) error {
		return common.NewStageError(common.StageEnvironment, common.SubjectNone, 0, err)
	}
	if err := source.Validate(); err != nil {
		return nil, fail(err)
	}

	start := time.Now()
	e := &environment{mu: &sync.Mutex{}, device: device}
	b := &builder{device: device, registry: registry, cache: cache}
	defer b.release()

	var err error
	if e.env, err = newCubemap(device, "environment", cfg.cubemapSize); err != nil {
		return nil, fail(err)
	}
	if e.irradiance, err = newCubemap(device, "irradiance", cfg.irradianceSize); err != nil {
		e.Release()
		return nil, fail(err)
	}
	e.sampler, err = device.CreateSampler(common.SamplerStagingData{
		AddressMode: gpu.AddressModeClampToEdge,
		MagFilter:   gpu.FilterModeLinear,
		MinFilter:   gpu.FilterModeLinear,
	}.Descriptor("environment"))
	if err != nil {
		e.Release()
		return nil, fail(fmt.Errorf("failed to create sampler: %w", err))
	}

	encoder := gpu.NewCommandEncoder("environment")
	if err := b.equirect(encoder, source, e.env); err != nil {
		e.Release()
		return nil, fail(err)
	}
	if err := b.convolve(encoder, e.env, e.irradiance, e.sampler, cfg.irradianceSize, cfg.sampleDelta); err != nil {
		e.Release()
		return nil, fail(err)
	}
	cb, err := encoder.Finish()
	if err != nil {
		e.Release()
		return nil, fail(err)
	}
	if err := device.Submit(cb); err != nil {
		e.Release()
		return nil, fail(err)
	}

	cfg.logger.Debug("built environment maps",
		zap.Int("source_width", source.Width),
		zap.Int("source_height", source.Height),
		zap.Uint32("cubemap_size", cfg.cubemapSize),
		zap.Uint32("irradiance_size", cfg.irradianceSize),
		zap.Duration("elapsed", time.Since(start)),
	)
	return e, nil
}

func newCubemap(device gpu.Device, label string, size uint32) (cubemap, error) {
	var c cubemap
	tex, err := device.CreateTexture(gpu.TextureDescriptor{
		Label:  label,
		Width:  size,
		Height: size,
		Layers: common.CubeFaceCount,
		Format: CubemapFormat,
		Usage:  gpu.TextureUsageStorageBinding | gpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return c, fmt.Errorf("failed to create %s cubemap: %w", label, err)
	}
	c.texture = tex
	if c.storage, err = device.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: label + "_storage", Dimension: gpu.TextureViewDimension2DArray}); err != nil {
		c.release(device)
		return cubemap{}, fmt.Errorf("failed to create %s storage view: %w", label, err)
	}
	if c.cube, err = device.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: label + "_cube", Dimension: gpu.TextureViewDimensionCube}); err != nil {
		c.release(device)
		return cubemap{}, fmt.Errorf("failed to create %s cube view: %w", label, err)
	}
	return c, nil
}

func (c *cubemap) release(device gpu.Device) {
	if c.cube != nil {
		device.Release(c.cube)
	}
	if c.storage != nil {
		device.Release(c.storage)
	}
	if c.texture != nil {
		device.Release(c.texture)
	}
	*c = cubemap{}
}

// builder tracks the transient resources of one Build call.
type builder struct {
	device    gpu.Device
	registry  layout.Registry
	cache     pipeline.Cache
	resources []gpu.Resource
	providers []bind_group_provider.BindGroupProvider
}

func (b *builder) release() {
	for _, p := range b.providers {
		p.Release()
	}
	for i := len(b.resources) - 1; i >= 0; i-- {
		b.device.Release(b.resources[i])
	}
}

// dispatch records one compute pass running a cached pipeline over a cube target of size texels per face.
func (b *builder) dispatch(encoder *gpu.CommandEncoder, key string, pass layout.Pass, group bind_group_provider.BindGroupProvider, size uint32) error {
	p, err := b.cache.Get(key, pass)
	if err != nil {
		return err
	}
	wg := p.Shader().WorkgroupSize()
	cp := encoder.BeginComputePass("environment/" + pass.String())
	cp.SetPipeline(p.Compute())
	cp.SetBindGroup(0, group.BindGroup())
	cp.DispatchWorkgroups(gpu.WorkgroupCount(size, wg[0]), gpu.WorkgroupCount(size, wg[1]), common.CubeFaceCount)
	cp.End()
	return nil
}

// equirect uploads the source image and records the projection onto target.
func (b *builder) equirect(encoder *gpu.CommandEncoder, source *common.HDRImage, target cubemap) error {
	tex, err := b.device.CreateTexture(gpu.TextureDescriptor{
		Label:  "environment_source",
		Width:  uint32(source.Width),
		Height: uint32(source.Height),
		Layers: 1,
		Format: gpu.TextureFormatRGBA32Float,
		Usage:  gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create source texture: %w", err)
	}
	b.resources = append(b.resources, tex)
	if err := b.device.WriteTexture(tex, 0, source.Marshal()); err != nil {
		return fmt.Errorf("failed to upload source image: %w", err)
	}
	view, err := b.device.CreateTextureView(tex, gpu.TextureViewDescriptor{Label: "environment_source_view"})
	if err != nil {
		return fmt.Errorf("failed to create source view: %w", err)
	}
	b.resources = append(b.resources, view)

	group := bind_group_provider.NewBindGroupProvider("equirect", layout.BindGroupEquirect,
		bind_group_provider.WithTextureView(layout.EquirectBindingSource, view),
		bind_group_provider.WithTextureView(layout.EquirectBindingTarget, target.storage),
	)
	if err := group.Init(b.device, b.registry); err != nil {
		return err
	}
	b.providers = append(b.providers, group)
	return b.dispatch(encoder, EquirectPipelineKey, layout.PassEquirect, group, target.texture.Width())
}

// convolve records the irradiance integration of env into target.
func (b *builder) convolve(encoder *gpu.CommandEncoder, env, target cubemap, sampler *gpu.Sampler, size uint32, delta float32) error {
	if delta <= 0 {
		return fmt.Errorf("irradiance sample delta %v must be positive", delta)
	}
	group := bind_group_provider.NewBindGroupProvider("irradiance", layout.BindGroupIrradiance,
		bind_group_provider.WithTextureView(layout.IrradianceBindingSource, env.cube),
		bind_group_provider.WithSampler(layout.IrradianceBindingSampler, sampler),
		bind_group_provider.WithTextureView(layout.IrradianceBindingTarget, target.storage),
	)
	if err := group.Init(b.device, b.registry); err != nil {
		return err
	}
	b.providers = append(b.providers, group)

	params := make([]byte, layout.IrradianceParamsSize)
	binary.LittleEndian.PutUint32(params[0:], size)
	binary.LittleEndian.PutUint32(params[4:], math.Float32bits(delta))
	if err := group.Write(layout.IrradianceBindingParams, params); err != nil {
		return err
	}
	return b.dispatch(encoder, IrradiancePipelineKey, layout.PassIrradiance, group, size)
}

func (e *environment) EnvironmentTexture() *gpu.Texture {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.env.texture
}

func (e *environment) EnvironmentView() *gpu.TextureView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.env.cube
}

func (e *environment) IrradianceTexture() *gpu.Texture {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.irradiance.texture
}

func (e *environment) IrradianceView() *gpu.TextureView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.irradiance.cube
}

func (e *environment) Sampler() *gpu.Sampler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampler
}

func (e *environment) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env.release(e.device)
	e.irradiance.release(e.device)
	if e.sampler != nil {
		e.device.Release(e.sampler)
		e.sampler = nil
	}
}
