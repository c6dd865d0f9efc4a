package pipeline

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/shader"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with a vertex and an optional fragment entry point.
	PipelineTypeRender
)

// pipeline is the implementation of the Pipeline interface.
// It holds the configuration a pipeline is built from and the device handle once built.
type pipeline struct {
	mu *sync.Mutex

	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string
	// pass selects the program and the bind group arrangement
	pass layout.Pass
	// shader is loaded from the pass program on Build when not supplied
	shader shader.Shader

	renderPipeline  *gpu.RenderPipeline
	computePipeline *gpu.ComputePipeline

	// The following properties configure render pipelines and can be set with the builder options.
	// Compute pipelines ignore them.

	colorFormats        []gpu.TextureFormat
	depthFormat         gpu.TextureFormat
	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthCompare        gpu.CompareFunction
	depthBias           int32
	depthBiasSlopeScale float32
	cullMode            gpu.CullMode
}

// Pipeline is a render or compute pipeline for one pass. It is configured up front and built against a device once;
// later Build calls are no-ops until Release.
type Pipeline interface {
	// Type returns the type of the pipeline, known once the shader is resolved.
	//
	// Returns:
	//   - PipelineType: PipelineTypeCompute if the program has a compute entry point, PipelineTypeRender otherwise
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Pass returns the pass whose program and bind group slots this pipeline uses.
	//
	// Returns:
	//   - layout.Pass: the pass
	Pass() layout.Pass

	// Shader returns the shader the pipeline was built from, or nil before Build.
	//
	// Returns:
	//   - shader.Shader: the shader
	Shader() shader.Shader

	// Descriptor assembles the render pipeline descriptor for this configuration.
	//
	// Parameters:
	//   - registry: the layout registry the bind group layouts come from
	//
	// Returns:
	//   - gpu.RenderPipelineDescriptor: the descriptor
	//   - error: an error if the shader cannot be loaded, is a compute program, or a layout cannot be created
	Descriptor(registry layout.Registry) (gpu.RenderPipelineDescriptor, error)

	// Build compiles the pipeline on device. Building an already built pipeline does nothing.
	//
	// Parameters:
	//   - device: the device to compile on
	//   - registry: the layout registry for device
	//
	// Returns:
	//   - error: an error naming the pipeline key if compilation fails
	Build(device gpu.Device, registry layout.Registry) error

	// Render returns the compiled render pipeline, or nil if not built or a compute pipeline.
	Render() *gpu.RenderPipeline

	// Compute returns the compiled compute pipeline, or nil if not built or a render pipeline.
	Compute() *gpu.ComputePipeline

	// ColorFormats returns the color target formats of a render pipeline.
	ColorFormats() []gpu.TextureFormat

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	DepthWriteEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	CullMode() gpu.CullMode

	// Release frees the compiled pipeline. The configuration is kept and Build may be called again.
	//
	// Parameters:
	//   - device: the device the pipeline was built on
	Release(device gpu.Device)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline for a pass.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pass: the pass whose program the pipeline runs
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new, unbuilt Pipeline
func NewPipeline(pipelineKey string, pass layout.Pass, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:                &sync.Mutex{},
		pipelineKey:       pipelineKey,
		pass:              pass,
		depthFormat:       gpu.TextureFormatDepth32Float,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      gpu.CompareFunctionLess,
		cullMode:          gpu.CullModeNone,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shader != nil && p.shader.ComputeEntry() != "" {
		return PipelineTypeCompute
	}
	return PipelineTypeRender
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Pass() layout.Pass {
	return p.pass
}

func (p *pipeline) Shader() shader.Shader {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shader
}

func (p *pipeline) Render() *gpu.RenderPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderPipeline
}

func (p *pipeline) Compute() *gpu.ComputePipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.computePipeline
}

func (p *pipeline) ColorFormats() []gpu.TextureFormat {
	return append([]gpu.TextureFormat(nil), p.colorFormats...)
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) CullMode() gpu.CullMode {
	return p.cullMode
}

// resolveShader loads the pass program on first use. Callers hold p.mu.
func (p *pipeline) resolveShader() (shader.Shader, error) {
	if p.shader != nil {
		return p.shader, nil
	}
	s, err := shader.Load(p.pass)
	if err != nil {
		return nil, err
	}
	p.shader = s
	return s, nil
}

func (p *pipeline) Descriptor(registry layout.Registry) (gpu.RenderPipelineDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderDescriptor(registry)
}

func (p *pipeline) renderDescriptor(registry layout.Registry) (gpu.RenderPipelineDescriptor, error) {
	s, err := p.resolveShader()
	if err != nil {
		return gpu.RenderPipelineDescriptor{}, err
	}
	if s.ComputeEntry() != "" {
		return gpu.RenderPipelineDescriptor{}, fmt.Errorf("pipeline %q: %s is a compute program", p.pipelineKey, p.pass)
	}
	layouts, err := registry.PipelineLayouts(p.pass)
	if err != nil {
		return gpu.RenderPipelineDescriptor{}, err
	}

	desc := gpu.RenderPipelineDescriptor{
		Label:            p.pipelineKey,
		Source:           s.Source(),
		VertexEntry:      s.VertexEntry(),
		FragmentEntry:    s.FragmentEntry(),
		BindGroupLayouts: layouts,
		CullMode:         p.cullMode,
	}
	if vl, ok := s.VertexLayout(); ok {
		desc.VertexBuffers = []gpu.VertexBufferLayout{vl}
	}
	if desc.FragmentEntry != "" {
		desc.ColorFormats = append([]gpu.TextureFormat(nil), p.colorFormats...)
	}
	if p.depthTestEnabled {
		desc.Depth = &gpu.DepthState{
			Format:              p.depthFormat,
			WriteEnabled:        p.depthWriteEnabled,
			Compare:             p.depthCompare,
			DepthBias:           p.depthBias,
			DepthBiasSlopeScale: p.depthBiasSlopeScale,
		}
	}
	return desc, nil
}

func (p *pipeline) Build(device gpu.Device, registry layout.Registry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renderPipeline != nil || p.computePipeline != nil {
		return nil
	}

	s, err := p.resolveShader()
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
	}
	if s.ComputeEntry() != "" {
		layouts, err := registry.PipelineLayouts(p.pass)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
		}
		cp, err := device.CreateComputePipeline(gpu.ComputePipelineDescriptor{
			Label:            p.pipelineKey,
			Source:           s.Source(),
			EntryPoint:       s.ComputeEntry(),
			BindGroupLayouts: layouts,
		})
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
		}
		p.computePipeline = cp
		return nil
	}

	desc, err := p.renderDescriptor(registry)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
	}
	rp, err := device.CreateRenderPipeline(desc)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
	}
	p.renderPipeline = rp
	return nil
}

func (p *pipeline) Release(device gpu.Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renderPipeline != nil {
		device.Release(p.renderPipeline)
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		device.Release(p.computePipeline)
		p.computePipeline = nil
	}
}
