package bind_group_provider

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex
	// label is a debug label added for convenience.
	label string
	// kind selects the layout the bind group is created against.
	kind layout.BindGroup

	device gpu.Device

	// The following fields are device resources. Buffers created by Init are owned and released with the provider.
	// Texture views and samplers are borrowed from their owners and never released here.

	bindGroup    *gpu.BindGroup
	layout       *gpu.BindGroupLayout
	buffers      map[uint32]*gpu.Buffer
	owned        map[uint32]bool
	bufferSizes  map[uint32]uint64
	textureViews map[uint32]*gpu.TextureView
	samplers     map[uint32]*gpu.Sampler

	// lastWrite holds the bytes most recently written to each owned buffer, for WriteIfChanged.
	lastWrite map[uint32][]byte
	// dirty is set when a bound resource changed and the bind group must be recreated.
	dirty bool
}

// BindGroupProvider owns one bind group of a known kind together with the uniform and storage buffers it creates for
// it. Components hold a provider per bind group they need; passes read BindGroup() when recording.
//
// Usage pattern:
//  1. Create a provider with NewBindGroupProvider, supplying the texture views and samplers it binds
//  2. Call Init to create the owned buffers and the bind group
//  3. Call Write or WriteIfChanged to update buffer contents
//  4. Call SetTextureView / SetSampler and then Commit when a bound resource is replaced
//  5. Call Release when the owner goes away
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Kind returns the bind group kind this provider creates.
	//
	// Returns:
	//   - layout.BindGroup: the kind
	Kind() layout.BindGroup

	// Init creates the owned buffers and the bind group on device. Calling Init on an initialized provider does nothing.
	//
	// Parameters:
	//   - device: the device to create resources on
	//   - registry: the layout registry for device
	//
	// Returns:
	//   - error: an error if a binding is unsatisfied or the device rejects a resource
	Init(device gpu.Device, registry layout.Registry) error

	// BindGroup returns the created bind group, or nil if not initialized.
	//
	// Returns:
	//   - *gpu.BindGroup: the bind group or nil
	BindGroup() *gpu.BindGroup

	// Buffer returns the buffer bound at binding, or nil.
	//
	// Parameters:
	//   - binding: the binding number
	//
	// Returns:
	//   - *gpu.Buffer: the buffer or nil
	Buffer(binding uint32) *gpu.Buffer

	// TextureView returns the view bound at binding, or nil.
	//
	// Parameters:
	//   - binding: the binding number
	//
	// Returns:
	//   - *gpu.TextureView: the view or nil
	TextureView(binding uint32) *gpu.TextureView

	// Sampler returns the sampler bound at binding, or nil.
	//
	// Parameters:
	//   - binding: the binding number
	//
	// Returns:
	//   - *gpu.Sampler: the sampler or nil
	Sampler(binding uint32) *gpu.Sampler

	// Write writes data to the owned buffer at binding starting at offset 0. An owned buffer too small for data is
	// replaced by a larger one and the bind group is recreated.
	//
	// Parameters:
	//   - binding: the binding number
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the binding has no owned buffer or the write fails
	Write(binding uint32, data []byte) error

	// WriteIfChanged writes data like Write, but skips the device write when data equals the previous write.
	//
	// Parameters:
	//   - binding: the binding number
	//   - data: the bytes to write
	//
	// Returns:
	//   - bool: true if the device buffer was written
	//   - error: an error if the write fails
	WriteIfChanged(binding uint32, data []byte) (bool, error)

	// SetTextureView replaces the view at binding. The bind group is recreated on the next Commit.
	//
	// Parameters:
	//   - binding: the binding number
	//   - view: the new view
	SetTextureView(binding uint32, view *gpu.TextureView)

	// SetSampler replaces the sampler at binding. The bind group is recreated on the next Commit.
	//
	// Parameters:
	//   - binding: the binding number
	//   - s: the new sampler
	SetSampler(binding uint32, s *gpu.Sampler)

	// Commit recreates the bind group if a bound resource changed since the last Init or Commit.
	//
	// Returns:
	//   - bool: true if the bind group was recreated
	//   - error: an error if the device rejects the new bind group
	Commit() (bool, error)

	// Release releases the bind group and every owned buffer.
	Release()
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new, uninitialized BindGroupProvider.
//
// Parameters:
//   - label: the debug label
//   - kind: the bind group kind
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, kind layout.BindGroup, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		mu:           &sync.Mutex{},
		label:        label,
		kind:         kind,
		buffers:      make(map[uint32]*gpu.Buffer),
		owned:        make(map[uint32]bool),
		bufferSizes:  make(map[uint32]uint64),
		textureViews: make(map[uint32]*gpu.TextureView),
		samplers:     make(map[uint32]*gpu.Sampler),
		lastWrite:    make(map[uint32][]byte),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Kind() layout.BindGroup {
	return p.kind
}

func (p *bindGroupProvider) Init(device gpu.Device, registry layout.Registry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bindGroup != nil {
		return nil
	}

	l, err := registry.Layout(p.kind)
	if err != nil {
		return fmt.Errorf("bind group %q: %w", p.label, err)
	}
	p.device = device
	p.layout = l

	for _, e := range l.Descriptor().Entries {
		if !e.Type.IsBuffer() || p.buffers[e.Binding] != nil {
			continue
		}
		size := max(p.bufferSizes[e.Binding], e.MinBindingSize)
		buf, err := device.CreateBuffer(gpu.BufferDescriptor{
			Label: fmt.Sprintf("%s_%d", p.label, e.Binding),
			Size:  size,
			Usage: bufferUsage(e.Type),
		})
		if err != nil {
			return fmt.Errorf("bind group %q binding %d: %w", p.label, e.Binding, err)
		}
		p.buffers[e.Binding] = buf
		p.owned[e.Binding] = true
	}

	if err := p.createBindGroup(); err != nil {
		for binding, buf := range p.buffers {
			if p.owned[binding] {
				device.Release(buf)
				delete(p.buffers, binding)
				delete(p.owned, binding)
			}
		}
		return err
	}
	return nil
}

// createBindGroup builds the bind group from the current resources, releasing any previous one. Callers hold p.mu.
func (p *bindGroupProvider) createBindGroup() error {
	desc := gpu.BindGroupDescriptor{Label: p.label, Layout: p.layout}
	for _, e := range p.layout.Descriptor().Entries {
		entry := gpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Type.IsBuffer():
			entry.Buffer = p.buffers[e.Binding]
		case e.Type.IsTexture():
			entry.TextureView = p.textureViews[e.Binding]
		case e.Type.IsSampler():
			entry.Sampler = p.samplers[e.Binding]
		}
		desc.Entries = append(desc.Entries, entry)
	}
	bg, err := p.device.CreateBindGroup(desc)
	if err != nil {
		return fmt.Errorf("bind group %q: %w", p.label, err)
	}
	if p.bindGroup != nil {
		p.device.Release(p.bindGroup)
	}
	p.bindGroup = bg
	p.dirty = false
	return nil
}

func (p *bindGroupProvider) BindGroup() *gpu.BindGroup {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding uint32) *gpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffers[binding]
}

func (p *bindGroupProvider) TextureView(binding uint32) *gpu.TextureView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding uint32) *gpu.Sampler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samplers[binding]
}

func (p *bindGroupProvider) Write(binding uint32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(binding, data)
}

func (p *bindGroupProvider) WriteIfChanged(binding uint32, data []byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.lastWrite[binding]; ok && bytes.Equal(prev, data) {
		return false, nil
	}
	if err := p.write(binding, data); err != nil {
		return false, err
	}
	return true, nil
}

func (p *bindGroupProvider) write(binding uint32, data []byte) error {
	if p.bindGroup == nil {
		return fmt.Errorf("bind group %q is not initialized", p.label)
	}
	buf := p.buffers[binding]
	if buf == nil || !p.owned[binding] {
		return fmt.Errorf("bind group %q has no owned buffer at binding %d", p.label, binding)
	}
	if uint64(len(data)) > buf.Size() {
		grown, err := p.device.CreateBuffer(gpu.BufferDescriptor{Label: buf.Label(), Size: uint64(len(data)), Usage: buf.Usage()})
		if err != nil {
			return fmt.Errorf("bind group %q binding %d: %w", p.label, binding, err)
		}
		p.buffers[binding] = grown
		if err := p.createBindGroup(); err != nil {
			p.buffers[binding] = buf
			p.device.Release(grown)
			return err
		}
		p.device.Release(buf)
		buf = grown
	}
	if err := p.device.WriteBuffer(buf, 0, data); err != nil {
		return fmt.Errorf("bind group %q binding %d: %w", p.label, binding, err)
	}
	p.lastWrite[binding] = append(p.lastWrite[binding][:0], data...)
	return nil
}

func (p *bindGroupProvider) SetTextureView(binding uint32, view *gpu.TextureView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.textureViews[binding] != view {
		p.textureViews[binding] = view
		p.dirty = true
	}
}

func (p *bindGroupProvider) SetSampler(binding uint32, s *gpu.Sampler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.samplers[binding] != s {
		p.samplers[binding] = s
		p.dirty = true
	}
}

func (p *bindGroupProvider) Commit() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bindGroup == nil {
		return false, fmt.Errorf("bind group %q is not initialized", p.label)
	}
	if !p.dirty {
		return false, nil
	}
	if err := p.createBindGroup(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return
	}
	if p.bindGroup != nil {
		p.device.Release(p.bindGroup)
		p.bindGroup = nil
	}
	for binding, buf := range p.buffers {
		if p.owned[binding] {
			p.device.Release(buf)
			delete(p.buffers, binding)
			delete(p.owned, binding)
		}
	}
	clear(p.lastWrite)
}

func bufferUsage(t gpu.BindingType) gpu.BufferUsage {
	if t == gpu.BindingTypeUniformBuffer {
		return gpu.BufferUsageUniform | gpu.BufferUsageCopyDst
	}
	return gpu.BufferUsageStorage | gpu.BufferUsageCopyDst
}
