// package software is a CPU implementation of gpu.Device. It keeps every resource in host memory, rasterizes
// depth-only pipelines, runs the environment compute kernels and records a log of each executed pass so frames can
// be inspected without a graphics adapter.
package software

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"go.uber.org/zap"
)

// Device is a gpu.Device executed on the CPU with read-back and inspection helpers.
type Device interface {
	gpu.Device

	// ReadBuffer returns a copy of a buffer's contents.
	//
	// Parameters:
	//   - buf: the buffer to read
	//
	// Returns:
	//   - []byte: the buffer bytes
	//   - error: gpu.ErrUnknownResource if the buffer is not live on this device
	ReadBuffer(buf *gpu.Buffer) ([]byte, error)

	// ReadTextureLayer returns a copy of one layer of a texture as float texels. Color formats yield 4 floats per
	// texel in RGBA order, depth formats yield 1.
	//
	// Parameters:
	//   - tex: the texture to read
	//   - layer: the array layer
	//
	// Returns:
	//   - []float32: the texels, row major
	//   - error: gpu.ErrUnknownResource or a range error
	ReadTextureLayer(tex *gpu.Texture, layer uint32) ([]float32, error)

	// BufferWrites returns how many WriteBuffer calls a buffer has received.
	BufferWrites(buf *gpu.Buffer) int

	// Submissions returns the log of every pass executed since the last ResetSubmissions.
	Submissions() []Submission

	// ResetSubmissions clears the pass log.
	ResetSubmissions()

	// LiveResources returns the number of resources created and not yet released.
	LiveResources() int

	// Close stops the worker pool. The device must not be used afterwards.
	Close()
}

type bufferState struct {
	handle *gpu.Buffer
	data   []byte
	writes int
}

type textureState struct {
	handle   *gpu.Texture
	channels int
	layers   [][]float32
}

// texel returns the channel slice of texel (x, y) on a layer.
func (t *textureState) texel(layer uint32, x, y int) []float32 {
	i := (y*int(t.handle.Width()) + x) * t.channels
	return t.layers[layer][i : i+t.channels]
}

type device struct {
	mu      *sync.Mutex
	logger  *zap.Logger
	workers int
	pool    worker.DynamicWorkerPool

	buffers          map[gpu.ResourceID]*bufferState
	textures         map[gpu.ResourceID]*textureState
	views            map[gpu.ResourceID]*gpu.TextureView
	samplers         map[gpu.ResourceID]*gpu.Sampler
	layouts          map[gpu.ResourceID]*gpu.BindGroupLayout
	bindGroups       map[gpu.ResourceID]*gpu.BindGroup
	renderPipelines  map[gpu.ResourceID]*gpu.RenderPipeline
	computePipelines map[gpu.ResourceID]*gpu.ComputePipeline

	submissions []Submission
	sequence    int
}

var _ Device = &device{}

// NewDevice creates a software device.
//
// Parameters:
//   - options: functional options such as WithWorkers and WithLogger
//
// Returns:
//   - Device: the device
func NewDevice(options ...DeviceBuilderOption) Device {
	d := &device{
		mu:               &sync.Mutex{},
		logger:           zap.NewNop(),
		workers:          runtime.NumCPU(),
		buffers:          make(map[gpu.ResourceID]*bufferState),
		textures:         make(map[gpu.ResourceID]*textureState),
		views:            make(map[gpu.ResourceID]*gpu.TextureView),
		samplers:         make(map[gpu.ResourceID]*gpu.Sampler),
		layouts:          make(map[gpu.ResourceID]*gpu.BindGroupLayout),
		bindGroups:       make(map[gpu.ResourceID]*gpu.BindGroup),
		renderPipelines:  make(map[gpu.ResourceID]*gpu.RenderPipeline),
		computePipelines: make(map[gpu.ResourceID]*gpu.ComputePipeline),
	}
	for _, opt := range options {
		opt(d)
	}
	d.workers = max(1, d.workers)
	d.pool = worker.NewDynamicWorkerPool(d.workers, 4*d.workers, time.Second)
	return d
}

func (d *device) CreateBuffer(desc gpu.BufferDescriptor) (*gpu.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := gpu.NewBuffer(desc)
	d.buffers[buf.ID()] = &bufferState{handle: buf, data: make([]byte, desc.Size)}
	return buf, nil
}

func (d *device) WriteBuffer(buf *gpu.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, err := d.buffer(buf)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > uint64(len(state.data)) {
		return fmt.Errorf("software: write of %d bytes at %d exceeds buffer %q of %d bytes",
			len(data), offset, buf.Label(), len(state.data))
	}
	copy(state.data[offset:], data)
	state.writes++
	return nil
}

func (d *device) CreateTexture(desc gpu.TextureDescriptor) (*gpu.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	tex := gpu.NewTexture(desc)
	channels := channelCount(desc.Format)
	layers := make([][]float32, desc.Layers)
	for i := range layers {
		layers[i] = make([]float32, int(desc.Width)*int(desc.Height)*channels)
	}
	d.textures[tex.ID()] = &textureState{handle: tex, channels: channels, layers: layers}
	return tex, nil
}

func (d *device) WriteTexture(tex *gpu.Texture, layer uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, err := d.texture(tex)
	if err != nil {
		return err
	}
	if layer >= tex.Layers() {
		return fmt.Errorf("software: layer %d out of range for texture %q with %d layers", layer, tex.Label(), tex.Layers())
	}
	want := int(tex.Width()) * int(tex.Height()) * tex.Format().BytesPerTexel()
	if len(data) != want {
		return fmt.Errorf("software: texture %q layer %d needs %d bytes, got %d", tex.Label(), layer, want, len(data))
	}
	decodeTexels(tex.Format(), data, state.layers[layer])
	return nil
}

func (d *device) CreateTextureView(tex *gpu.Texture, desc gpu.TextureViewDescriptor) (*gpu.TextureView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.texture(tex); err != nil {
		return nil, err
	}
	view, err := gpu.NewTextureView(tex, desc)
	if err != nil {
		return nil, err
	}
	d.views[view.ID()] = view
	return view, nil
}

func (d *device) CreateSampler(desc gpu.SamplerDescriptor) (*gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := gpu.NewSampler(desc)
	d.samplers[s.ID()] = s
	return s, nil
}

func (d *device) CreateBindGroupLayout(desc gpu.BindGroupLayoutDescriptor) (*gpu.BindGroupLayout, error) {
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return nil, fmt.Errorf("%w: layout %q declares binding %d twice", gpu.ErrInvalidDescriptor, desc.Label, e.Binding)
		}
		seen[e.Binding] = true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	l := gpu.NewBindGroupLayout(desc)
	d.layouts[l.ID()] = l
	return l, nil
}

func (d *device) CreateBindGroup(desc gpu.BindGroupDescriptor) (*gpu.BindGroup, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.layouts[desc.Layout.ID()]; !ok {
		return nil, fmt.Errorf("software: bind group %q layout %q: %w", desc.Label, desc.Layout.Label(), gpu.ErrUnknownResource)
	}
	for _, e := range desc.Entries {
		le, ok := desc.Layout.Descriptor().Entry(e.Binding)
		if !ok {
			return nil, fmt.Errorf("%w: bind group %q binds %d which its layout does not declare",
				gpu.ErrInvalidDescriptor, desc.Label, e.Binding)
		}
		if err := d.checkEntry(desc.Label, le, e); err != nil {
			return nil, err
		}
	}

	g := gpu.NewBindGroup(desc)
	d.bindGroups[g.ID()] = g
	return g, nil
}

// checkEntry verifies that the resource behind a bind group entry is live and large or typed enough for its slot.
func (d *device) checkEntry(label string, le gpu.BindGroupLayoutEntry, e gpu.BindGroupEntry) error {
	switch {
	case le.Type.IsBuffer():
		state, err := d.buffer(e.Buffer)
		if err != nil {
			return fmt.Errorf("software: bind group %q binding %d: %w", label, e.Binding, err)
		}
		if uint64(len(state.data)) < le.MinBindingSize {
			return fmt.Errorf("%w: bind group %q binding %d buffer %q has %d bytes, layout needs %d",
				gpu.ErrInvalidDescriptor, label, e.Binding, e.Buffer.Label(), len(state.data), le.MinBindingSize)
		}
	case le.Type.IsTexture():
		if _, ok := d.views[e.TextureView.ID()]; !ok {
			return fmt.Errorf("software: bind group %q binding %d view %q: %w", label, e.Binding, e.TextureView.Label(), gpu.ErrUnknownResource)
		}
		format := e.TextureView.Texture().Format()
		if le.Type == gpu.BindingTypeDepthTexture && !format.IsDepth() {
			return fmt.Errorf("%w: bind group %q binding %d needs a depth texture, got %s",
				gpu.ErrInvalidDescriptor, label, e.Binding, format)
		}
		if le.Type == gpu.BindingTypeStorageTexture && format != le.StorageFormat {
			return fmt.Errorf("%w: bind group %q binding %d needs storage format %s, got %s",
				gpu.ErrInvalidDescriptor, label, e.Binding, le.StorageFormat, format)
		}
	case le.Type.IsSampler():
		if _, ok := d.samplers[e.Sampler.ID()]; !ok {
			return fmt.Errorf("software: bind group %q binding %d sampler: %w", label, e.Binding, gpu.ErrUnknownResource)
		}
		comparison := e.Sampler.Descriptor().Compare != gpu.CompareFunctionUndefined
		if comparison != (le.Type == gpu.BindingTypeComparisonSampler) {
			return fmt.Errorf("%w: bind group %q binding %d sampler comparison mismatch", gpu.ErrInvalidDescriptor, label, e.Binding)
		}
	}
	return nil
}

func (d *device) CreateRenderPipeline(desc gpu.RenderPipelineDescriptor) (*gpu.RenderPipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkLayouts(desc.Label, desc.BindGroupLayouts); err != nil {
		return nil, err
	}
	if desc.FragmentEntry == "" {
		if _, ok := vertexPrograms[desc.VertexEntry]; !ok {
			return nil, fmt.Errorf("software: depth-only pipeline %q uses unsupported vertex entry %q", desc.Label, desc.VertexEntry)
		}
	}
	p := gpu.NewRenderPipeline(desc)
	d.renderPipelines[p.ID()] = p
	return p, nil
}

func (d *device) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (*gpu.ComputePipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkLayouts(desc.Label, desc.BindGroupLayouts); err != nil {
		return nil, err
	}
	if _, ok := computeKernels[desc.EntryPoint]; !ok {
		d.logger.Warn("compute entry point has no software kernel, dispatches will only be recorded",
			zap.String("pipeline", desc.Label), zap.String("entry", desc.EntryPoint))
	}
	p := gpu.NewComputePipeline(desc)
	d.computePipelines[p.ID()] = p
	return p, nil
}

func (d *device) checkLayouts(label string, layouts []*gpu.BindGroupLayout) error {
	for i, l := range layouts {
		if _, ok := d.layouts[l.ID()]; !ok {
			return fmt.Errorf("software: pipeline %q group %d layout %q: %w", label, i, l.Label(), gpu.ErrUnknownResource)
		}
	}
	return nil
}

func (d *device) Release(r gpu.Resource) {
	if r == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	id := r.ID()
	switch r.(type) {
	case *gpu.Buffer:
		delete(d.buffers, id)
	case *gpu.Texture:
		delete(d.textures, id)
	case *gpu.TextureView:
		delete(d.views, id)
	case *gpu.Sampler:
		delete(d.samplers, id)
	case *gpu.BindGroupLayout:
		delete(d.layouts, id)
	case *gpu.BindGroup:
		delete(d.bindGroups, id)
	case *gpu.RenderPipeline:
		delete(d.renderPipelines, id)
	case *gpu.ComputePipeline:
		delete(d.computePipelines, id)
	}
}

func (d *device) ReadBuffer(buf *gpu.Buffer) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, err := d.buffer(buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(state.data))
	copy(out, state.data)
	return out, nil
}

func (d *device) ReadTextureLayer(tex *gpu.Texture, layer uint32) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, err := d.texture(tex)
	if err != nil {
		return nil, err
	}
	if layer >= tex.Layers() {
		return nil, fmt.Errorf("software: layer %d out of range for texture %q with %d layers", layer, tex.Label(), tex.Layers())
	}
	out := make([]float32, len(state.layers[layer]))
	copy(out, state.layers[layer])
	return out, nil
}

func (d *device) BufferWrites(buf *gpu.Buffer) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if state, err := d.buffer(buf); err == nil {
		return state.writes
	}
	return 0
}

func (d *device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Submission, len(d.submissions))
	copy(out, d.submissions)
	return out
}

func (d *device) ResetSubmissions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = nil
}

func (d *device) LiveResources() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers) + len(d.textures) + len(d.views) + len(d.samplers) + len(d.layouts) +
		len(d.bindGroups) + len(d.renderPipelines) + len(d.computePipelines)
}

func (d *device) Close() {
	d.pool.Stop()
}

func (d *device) buffer(buf *gpu.Buffer) (*bufferState, error) {
	if buf == nil {
		return nil, fmt.Errorf("software: nil buffer: %w", gpu.ErrUnknownResource)
	}
	state, ok := d.buffers[buf.ID()]
	if !ok {
		return nil, fmt.Errorf("software: buffer %q: %w", buf.Label(), gpu.ErrUnknownResource)
	}
	return state, nil
}

func (d *device) texture(tex *gpu.Texture) (*textureState, error) {
	if tex == nil {
		return nil, fmt.Errorf("software: nil texture: %w", gpu.ErrUnknownResource)
	}
	state, ok := d.textures[tex.ID()]
	if !ok {
		return nil, fmt.Errorf("software: texture %q: %w", tex.Label(), gpu.ErrUnknownResource)
	}
	return state, nil
}

// view resolves a view handle to the state of its texture.
func (d *device) view(v *gpu.TextureView) (*textureState, error) {
	if v == nil {
		return nil, fmt.Errorf("software: nil texture view: %w", gpu.ErrUnknownResource)
	}
	if _, ok := d.views[v.ID()]; !ok {
		return nil, fmt.Errorf("software: texture view %q: %w", v.Label(), gpu.ErrUnknownResource)
	}
	return d.texture(v.Texture())
}

// boundBuffer returns the bytes of the buffer at (group, binding) among the currently set bind groups.
func (d *device) boundBuffer(groups map[uint32]*gpu.BindGroup, group, binding uint32) ([]byte, error) {
	g, ok := groups[group]
	if !ok {
		return nil, fmt.Errorf("software: no bind group set at slot %d", group)
	}
	e, ok := g.Entry(binding)
	if !ok || e.Buffer == nil {
		return nil, fmt.Errorf("software: bind group %q has no buffer at binding %d", g.Label(), binding)
	}
	state, err := d.buffer(e.Buffer)
	if err != nil {
		return nil, err
	}
	return state.data, nil
}

// parallel runs fn(0..n-1) on the worker pool and waits for all of them. The first error or panic is returned.
func (d *device) parallel(n int, fn func(i int) error) error {
	var wg sync.WaitGroup
	var once sync.Once
	var first error
	fail := func(err error) {
		once.Do(func() { first = err })
	}
	for i := range n {
		wg.Add(1)
		d.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						fail(fmt.Errorf("software: task %d panicked: %v", i, r))
					}
				}()
				if err := fn(i); err != nil {
					fail(err)
					return nil, err
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return first
}

func readUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
