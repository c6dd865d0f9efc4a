package gpu

import "fmt"

// Resource is implemented by every handle a Device hands out.
type Resource interface {
	// ID returns the process-unique identifier of the resource.
	//
	// Returns:
	//   - ResourceID: the resource identifier
	ID() ResourceID

	// Label returns the debug label the resource was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// Validate checks the descriptor for values no device accepts.
//
// Returns:
//   - error: ErrInvalidDescriptor wrapped with the reason, or nil
func (d BufferDescriptor) Validate() error {
	if d.Size == 0 {
		return fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescriptor, d.Label)
	}
	if d.Usage == 0 {
		return fmt.Errorf("%w: buffer %q has no usage", ErrInvalidDescriptor, d.Label)
	}
	return nil
}

// TextureDescriptor describes a 2D texture (optionally layered) to create.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	// Layers is the array layer count. Cubemaps use 6.
	Layers uint32
	Format TextureFormat
	Usage  TextureUsage
}

// Validate checks the descriptor for values no device accepts.
//
// Returns:
//   - error: ErrInvalidDescriptor wrapped with the reason, or nil
func (d TextureDescriptor) Validate() error {
	if d.Width == 0 || d.Height == 0 || d.Layers == 0 {
		return fmt.Errorf("%w: texture %q has zero extent %dx%dx%d", ErrInvalidDescriptor, d.Label, d.Width, d.Height, d.Layers)
	}
	if d.Format == TextureFormatUndefined {
		return fmt.Errorf("%w: texture %q has no format", ErrInvalidDescriptor, d.Label)
	}
	if d.Usage == 0 {
		return fmt.Errorf("%w: texture %q has no usage", ErrInvalidDescriptor, d.Label)
	}
	return nil
}

// TextureViewDescriptor selects a layer range and dimension of a texture.
// A zero LayerCount means "all remaining layers".
type TextureViewDescriptor struct {
	Label      string
	Dimension  TextureViewDimension
	BaseLayer  uint32
	LayerCount uint32
}

// SamplerDescriptor describes a sampler. A Compare other than CompareFunctionUndefined makes it a comparison sampler.
type SamplerDescriptor struct {
	Label       string
	AddressMode AddressMode
	MagFilter   FilterMode
	MinFilter   FilterMode
	Compare     CompareFunction
}

// BindGroupLayoutEntry describes a single binding slot within a bind group layout.
type BindGroupLayoutEntry struct {
	Binding    uint32
	Visibility ShaderStage
	Type       BindingType
	// ViewDimension applies to texture bindings.
	ViewDimension TextureViewDimension
	// StorageFormat applies to storage texture bindings.
	StorageFormat TextureFormat
	// MinBindingSize applies to buffer bindings and is used as the default buffer size.
	MinBindingSize uint64
}

// BindGroupLayoutDescriptor describes the ordered entries of one bind group.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// Entry returns the layout entry for a binding number.
//
// Parameters:
//   - binding: the binding number to look up
//
// Returns:
//   - BindGroupLayoutEntry: the entry
//   - bool: false if the layout has no such binding
func (d BindGroupLayoutDescriptor) Entry(binding uint32) (BindGroupLayoutEntry, bool) {
	for _, e := range d.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return BindGroupLayoutEntry{}, false
}

// BindGroupEntry binds exactly one of Buffer, TextureView or Sampler to a binding number.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      *Buffer
	TextureView *TextureView
	Sampler     *Sampler
}

// BindGroupDescriptor describes a bind group against a layout.
type BindGroupDescriptor struct {
	Label   string
	Layout  *BindGroupLayout
	Entries []BindGroupEntry
}

// Validate checks that every layout entry is satisfied by a resource of the right kind.
//
// Returns:
//   - error: ErrInvalidDescriptor wrapped with the first mismatch, or nil
func (d BindGroupDescriptor) Validate() error {
	if d.Layout == nil {
		return fmt.Errorf("%w: bind group %q has no layout", ErrInvalidDescriptor, d.Label)
	}
	bound := make(map[uint32]BindGroupEntry, len(d.Entries))
	for _, e := range d.Entries {
		bound[e.Binding] = e
	}
	for _, le := range d.Layout.Descriptor().Entries {
		e, ok := bound[le.Binding]
		switch {
		case !ok:
			return fmt.Errorf("%w: bind group %q is missing binding %d", ErrInvalidDescriptor, d.Label, le.Binding)
		case le.Type.IsBuffer() && e.Buffer == nil:
			return fmt.Errorf("%w: bind group %q binding %d needs a buffer", ErrInvalidDescriptor, d.Label, le.Binding)
		case le.Type.IsTexture() && e.TextureView == nil:
			return fmt.Errorf("%w: bind group %q binding %d needs a texture view", ErrInvalidDescriptor, d.Label, le.Binding)
		case le.Type.IsSampler() && e.Sampler == nil:
			return fmt.Errorf("%w: bind group %q binding %d needs a sampler", ErrInvalidDescriptor, d.Label, le.Binding)
		}
		if le.Type.IsTexture() && e.TextureView.Dimension() != le.ViewDimension {
			return fmt.Errorf("%w: bind group %q binding %d expects view dimension %d, got %d",
				ErrInvalidDescriptor, d.Label, le.Binding, le.ViewDimension, e.TextureView.Dimension())
		}
	}
	return nil
}

// VertexAttribute describes one attribute within an interleaved vertex buffer.
type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes the stride and attributes of one vertex buffer slot.
type VertexBufferLayout struct {
	ArrayStride uint64
	Attributes  []VertexAttribute
}

// DepthState configures the depth attachment of a render pipeline.
type DepthState struct {
	Format              TextureFormat
	WriteEnabled        bool
	Compare             CompareFunction
	DepthBias           int32
	DepthBiasSlopeScale float32
}

// RenderPipelineDescriptor describes a render pipeline built from a single WGSL module.
// An empty FragmentEntry produces a depth-only pipeline.
type RenderPipelineDescriptor struct {
	Label            string
	Source           string
	VertexEntry      string
	FragmentEntry    string
	BindGroupLayouts []*BindGroupLayout
	VertexBuffers    []VertexBufferLayout
	ColorFormats     []TextureFormat
	Depth            *DepthState
	CullMode         CullMode
}

// Validate checks the descriptor for values no device accepts.
//
// Returns:
//   - error: ErrInvalidDescriptor wrapped with the reason, or nil
func (d RenderPipelineDescriptor) Validate() error {
	if d.VertexEntry == "" {
		return fmt.Errorf("%w: render pipeline %q has no vertex entry point", ErrInvalidDescriptor, d.Label)
	}
	if d.FragmentEntry != "" && len(d.ColorFormats) == 0 {
		return fmt.Errorf("%w: render pipeline %q has a fragment stage but no color targets", ErrInvalidDescriptor, d.Label)
	}
	if d.FragmentEntry == "" && d.Depth == nil {
		return fmt.Errorf("%w: render pipeline %q writes nothing", ErrInvalidDescriptor, d.Label)
	}
	for i, l := range d.BindGroupLayouts {
		if l == nil {
			return fmt.Errorf("%w: render pipeline %q has no layout for group %d", ErrInvalidDescriptor, d.Label, i)
		}
	}
	return nil
}

// ComputePipelineDescriptor describes a compute pipeline built from a single WGSL module.
type ComputePipelineDescriptor struct {
	Label            string
	Source           string
	EntryPoint       string
	BindGroupLayouts []*BindGroupLayout
}

// Validate checks the descriptor for values no device accepts.
//
// Returns:
//   - error: ErrInvalidDescriptor wrapped with the reason, or nil
func (d ComputePipelineDescriptor) Validate() error {
	if d.EntryPoint == "" {
		return fmt.Errorf("%w: compute pipeline %q has no entry point", ErrInvalidDescriptor, d.Label)
	}
	for i, l := range d.BindGroupLayouts {
		if l == nil {
			return fmt.Errorf("%w: compute pipeline %q has no layout for group %d", ErrInvalidDescriptor, d.Label, i)
		}
	}
	return nil
}

// Buffer is a handle to a device buffer.
type Buffer struct {
	id   ResourceID
	desc BufferDescriptor
}

// NewBuffer allocates a handle for a buffer. Device implementations call this after creating the native resource.
func NewBuffer(desc BufferDescriptor) *Buffer {
	return &Buffer{id: nextResourceID(), desc: desc}
}

func (b *Buffer) ID() ResourceID     { return b.id }
func (b *Buffer) Label() string      { return b.desc.Label }
func (b *Buffer) Size() uint64       { return b.desc.Size }
func (b *Buffer) Usage() BufferUsage { return b.desc.Usage }

// Texture is a handle to a device texture.
type Texture struct {
	id   ResourceID
	desc TextureDescriptor
}

// NewTexture allocates a handle for a texture. Device implementations call this after creating the native resource.
func NewTexture(desc TextureDescriptor) *Texture {
	return &Texture{id: nextResourceID(), desc: desc}
}

func (t *Texture) ID() ResourceID                { return t.id }
func (t *Texture) Label() string                 { return t.desc.Label }
func (t *Texture) Width() uint32                 { return t.desc.Width }
func (t *Texture) Height() uint32                { return t.desc.Height }
func (t *Texture) Layers() uint32                { return t.desc.Layers }
func (t *Texture) Format() TextureFormat         { return t.desc.Format }
func (t *Texture) Usage() TextureUsage           { return t.desc.Usage }
func (t *Texture) Descriptor() TextureDescriptor { return t.desc }

// TextureView is a handle to a view over a layer range of a texture.
type TextureView struct {
	id         ResourceID
	label      string
	texture    *Texture
	dimension  TextureViewDimension
	baseLayer  uint32
	layerCount uint32
}

// NewTextureView allocates a handle for a view, resolving a zero LayerCount against the texture.
//
// Parameters:
//   - tex: the viewed texture
//   - desc: the view descriptor
//
// Returns:
//   - *TextureView: the view handle
//   - error: ErrInvalidDescriptor if the layer range or dimension does not fit the texture
func NewTextureView(tex *Texture, desc TextureViewDescriptor) (*TextureView, error) {
	if tex == nil {
		return nil, fmt.Errorf("%w: view %q has no texture", ErrInvalidDescriptor, desc.Label)
	}
	count := desc.LayerCount
	if count == 0 {
		count = tex.Layers() - desc.BaseLayer
	}
	if desc.BaseLayer+count > tex.Layers() {
		return nil, fmt.Errorf("%w: view %q layers [%d,%d) exceed texture %q with %d layers",
			ErrInvalidDescriptor, desc.Label, desc.BaseLayer, desc.BaseLayer+count, tex.Label(), tex.Layers())
	}
	switch desc.Dimension {
	case TextureViewDimension2D:
		if count != 1 {
			return nil, fmt.Errorf("%w: 2D view %q must cover exactly one layer", ErrInvalidDescriptor, desc.Label)
		}
	case TextureViewDimensionCube:
		if count != 6 || tex.Width() != tex.Height() {
			return nil, fmt.Errorf("%w: cube view %q needs 6 square layers", ErrInvalidDescriptor, desc.Label)
		}
	case TextureViewDimensionCubeArray:
		if count == 0 || count%6 != 0 || tex.Width() != tex.Height() {
			return nil, fmt.Errorf("%w: cube array view %q needs a multiple of 6 square layers", ErrInvalidDescriptor, desc.Label)
		}
	}
	return &TextureView{
		id:         nextResourceID(),
		label:      desc.Label,
		texture:    tex,
		dimension:  desc.Dimension,
		baseLayer:  desc.BaseLayer,
		layerCount: count,
	}, nil
}

func (v *TextureView) ID() ResourceID                  { return v.id }
func (v *TextureView) Label() string                   { return v.label }
func (v *TextureView) Texture() *Texture               { return v.texture }
func (v *TextureView) Dimension() TextureViewDimension { return v.dimension }
func (v *TextureView) BaseLayer() uint32               { return v.baseLayer }
func (v *TextureView) LayerCount() uint32              { return v.layerCount }

// Sampler is a handle to a device sampler.
type Sampler struct {
	id   ResourceID
	desc SamplerDescriptor
}

// NewSampler allocates a handle for a sampler.
func NewSampler(desc SamplerDescriptor) *Sampler {
	return &Sampler{id: nextResourceID(), desc: desc}
}

func (s *Sampler) ID() ResourceID                { return s.id }
func (s *Sampler) Label() string                 { return s.desc.Label }
func (s *Sampler) Descriptor() SamplerDescriptor { return s.desc }

// BindGroupLayout is a handle to a bind group layout.
type BindGroupLayout struct {
	id   ResourceID
	desc BindGroupLayoutDescriptor
}

// NewBindGroupLayout allocates a handle for a bind group layout.
func NewBindGroupLayout(desc BindGroupLayoutDescriptor) *BindGroupLayout {
	return &BindGroupLayout{id: nextResourceID(), desc: desc}
}

func (l *BindGroupLayout) ID() ResourceID                        { return l.id }
func (l *BindGroupLayout) Label() string                         { return l.desc.Label }
func (l *BindGroupLayout) Descriptor() BindGroupLayoutDescriptor { return l.desc }

// BindGroup is a handle to a bound set of resources.
type BindGroup struct {
	id   ResourceID
	desc BindGroupDescriptor
}

// NewBindGroup allocates a handle for a bind group.
func NewBindGroup(desc BindGroupDescriptor) *BindGroup {
	return &BindGroup{id: nextResourceID(), desc: desc}
}

func (g *BindGroup) ID() ResourceID                  { return g.id }
func (g *BindGroup) Label() string                   { return g.desc.Label }
func (g *BindGroup) Layout() *BindGroupLayout        { return g.desc.Layout }
func (g *BindGroup) Descriptor() BindGroupDescriptor { return g.desc }

// Entry returns the resource bound to a binding number.
//
// Parameters:
//   - binding: the binding number
//
// Returns:
//   - BindGroupEntry: the bound entry
//   - bool: false if nothing is bound there
func (g *BindGroup) Entry(binding uint32) (BindGroupEntry, bool) {
	for _, e := range g.desc.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return BindGroupEntry{}, false
}

// RenderPipeline is a handle to a render pipeline.
type RenderPipeline struct {
	id   ResourceID
	desc RenderPipelineDescriptor
}

// NewRenderPipeline allocates a handle for a render pipeline.
func NewRenderPipeline(desc RenderPipelineDescriptor) *RenderPipeline {
	return &RenderPipeline{id: nextResourceID(), desc: desc}
}

func (p *RenderPipeline) ID() ResourceID                       { return p.id }
func (p *RenderPipeline) Label() string                        { return p.desc.Label }
func (p *RenderPipeline) Descriptor() RenderPipelineDescriptor { return p.desc }

// ComputePipeline is a handle to a compute pipeline.
type ComputePipeline struct {
	id   ResourceID
	desc ComputePipelineDescriptor
}

// NewComputePipeline allocates a handle for a compute pipeline.
func NewComputePipeline(desc ComputePipelineDescriptor) *ComputePipeline {
	return &ComputePipeline{id: nextResourceID(), desc: desc}
}

func (p *ComputePipeline) ID() ResourceID                        { return p.id }
func (p *ComputePipeline) Label() string                         { return p.desc.Label }
func (p *ComputePipeline) Descriptor() ComputePipelineDescriptor { return p.desc }
