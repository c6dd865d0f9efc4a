package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// nativeRenderPipeline keeps the shader module and pipeline layout alive alongside the pipeline built from them.
type nativeRenderPipeline struct {
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	module   *wgpu.ShaderModule
}

type nativeComputePipeline struct {
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.PipelineLayout
	module   *wgpu.ShaderModule
}

// wgpuDevice implements gpu.Device over a cogentcore/webgpu device. Every handle it returns is keyed by its
// ResourceID to the native object behind it.
type wgpuDevice struct {
	mu     *sync.Mutex
	logger *zap.Logger

	device *wgpu.Device
	queue  *wgpu.Queue

	buffers          map[gpu.ResourceID]*wgpu.Buffer
	textures         map[gpu.ResourceID]*wgpu.Texture
	views            map[gpu.ResourceID]*wgpu.TextureView
	samplers         map[gpu.ResourceID]*wgpu.Sampler
	layouts          map[gpu.ResourceID]*wgpu.BindGroupLayout
	groups           map[gpu.ResourceID]*wgpu.BindGroup
	renderPipelines  map[gpu.ResourceID]nativeRenderPipeline
	computePipelines map[gpu.ResourceID]nativeComputePipeline
}

var _ gpu.Device = &wgpuDevice{}

func newWGPUDevice(device *wgpu.Device, logger *zap.Logger) *wgpuDevice {
	return &wgpuDevice{
		mu:               &sync.Mutex{},
		logger:           logger,
		device:           device,
		queue:            device.GetQueue(),
		buffers:          make(map[gpu.ResourceID]*wgpu.Buffer),
		textures:         make(map[gpu.ResourceID]*wgpu.Texture),
		views:            make(map[gpu.ResourceID]*wgpu.TextureView),
		samplers:         make(map[gpu.ResourceID]*wgpu.Sampler),
		layouts:          make(map[gpu.ResourceID]*wgpu.BindGroupLayout),
		groups:           make(map[gpu.ResourceID]*wgpu.BindGroup),
		renderPipelines:  make(map[gpu.ResourceID]nativeRenderPipeline),
		computePipelines: make(map[gpu.ResourceID]nativeComputePipeline),
	}
}

func (d *wgpuDevice) CreateBuffer(desc gpu.BufferDescriptor) (*gpu.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  align4(desc.Size),
		Usage: toWGPUBufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}
	h := gpu.NewBuffer(desc)
	d.buffers[h.ID()] = buf
	return h, nil
}

func (d *wgpuDevice) WriteBuffer(buf *gpu.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	native, ok := d.buffers[buf.ID()]
	if !ok {
		return fmt.Errorf("%w: buffer %q", gpu.ErrUnknownResource, buf.Label())
	}
	if offset+uint64(len(data)) > buf.Size() {
		return fmt.Errorf("%w: write of %d bytes at %d exceeds buffer %q of %d bytes",
			gpu.ErrInvalidDescriptor, len(data), offset, buf.Label(), buf.Size())
	}
	if len(data)%4 != 0 {
		padded := make([]byte, align4(uint64(len(data))))
		copy(padded, data)
		data = padded
	}
	d.queue.WriteBuffer(native, offset, data)
	return nil
}

func (d *wgpuDevice) CreateTexture(desc gpu.TextureDescriptor) (*gpu.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	format, err := toWGPUTextureFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     toWGPUTextureUsage(desc.Usage),
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Layers,
		},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}
	h := gpu.NewTexture(desc)
	d.textures[h.ID()] = tex
	return h, nil
}

func (d *wgpuDevice) WriteTexture(tex *gpu.Texture, layer uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	native, ok := d.textures[tex.ID()]
	if !ok {
		return fmt.Errorf("%w: texture %q", gpu.ErrUnknownResource, tex.Label())
	}
	if layer >= tex.Layers() {
		return fmt.Errorf("%w: layer %d of texture %q with %d layers", gpu.ErrInvalidDescriptor, layer, tex.Label(), tex.Layers())
	}
	rowBytes := tex.Width() * uint32(tex.Format().BytesPerTexel())
	if want := int(rowBytes * tex.Height()); len(data) != want {
		return fmt.Errorf("%w: texture %q layer needs %d bytes, got %d", gpu.ErrInvalidDescriptor, tex.Label(), want, len(data))
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  native,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: layer},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  rowBytes,
			RowsPerImage: tex.Height(),
		},
		&wgpu.Extent3D{
			Width:              tex.Width(),
			Height:             tex.Height(),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (d *wgpuDevice) CreateTextureView(tex *gpu.Texture, desc gpu.TextureViewDescriptor) (*gpu.TextureView, error) {
	h, err := gpu.NewTextureView(tex, desc)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	native, ok := d.textures[tex.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: texture %q", gpu.ErrUnknownResource, tex.Label())
	}
	format, err := toWGPUTextureFormat(tex.Format())
	if err != nil {
		return nil, err
	}
	view, err := native.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          format,
		Dimension:       toWGPUViewDimension(h.Dimension()),
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  h.BaseLayer(),
		ArrayLayerCount: h.LayerCount(),
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create view %q: %w", desc.Label, err)
	}
	d.views[h.ID()] = view
	return h, nil
}

func (d *wgpuDevice) CreateSampler(desc gpu.SamplerDescriptor) (*gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mode := toWGPUAddressMode(desc.AddressMode)
	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  mode,
		AddressModeV:  mode,
		AddressModeW:  mode,
		MagFilter:     toWGPUFilterMode(desc.MagFilter),
		MinFilter:     toWGPUFilterMode(desc.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		Compare:       toWGPUCompare(desc.Compare),
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %q: %w", desc.Label, err)
	}
	h := gpu.NewSampler(desc)
	d.samplers[h.ID()] = samp
	return h, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(desc gpu.BindGroupLayoutDescriptor) (*gpu.BindGroupLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry, err := toWGPULayoutEntry(e)
		if err != nil {
			return nil, fmt.Errorf("layout %q binding %d: %w", desc.Label, e.Binding, err)
		}
		entries[i] = entry
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout %q: %w", desc.Label, err)
	}
	h := gpu.NewBindGroupLayout(desc)
	d.layouts[h.ID()] = layout
	return h, nil
}

func (d *wgpuDevice) CreateBindGroup(desc gpu.BindGroupDescriptor) (*gpu.BindGroup, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := d.layouts[desc.Layout.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: layout %q of bind group %q", gpu.ErrUnknownResource, desc.Layout.Label(), desc.Label)
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf, ok := d.buffers[e.Buffer.ID()]
			if !ok {
				return nil, fmt.Errorf("%w: buffer %q in bind group %q", gpu.ErrUnknownResource, e.Buffer.Label(), desc.Label)
			}
			entry.Buffer = buf
			entry.Offset = 0
			entry.Size = wgpu.WholeSize
		case e.TextureView != nil:
			view, ok := d.views[e.TextureView.ID()]
			if !ok {
				return nil, fmt.Errorf("%w: view %q in bind group %q", gpu.ErrUnknownResource, e.TextureView.Label(), desc.Label)
			}
			entry.TextureView = view
		case e.Sampler != nil:
			samp, ok := d.samplers[e.Sampler.ID()]
			if !ok {
				return nil, fmt.Errorf("%w: sampler %q in bind group %q", gpu.ErrUnknownResource, e.Sampler.Label(), desc.Label)
			}
			entry.Sampler = samp
		default:
			return nil, fmt.Errorf("%w: bind group %q binding %d is empty", gpu.ErrInvalidDescriptor, desc.Label, e.Binding)
		}
		entries = append(entries, entry)
	}

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %q: %w", desc.Label, err)
	}
	h := gpu.NewBindGroup(desc)
	d.groups[h.ID()] = group
	return h, nil
}

// pipelineLayout compiles the WGSL module and the pipeline layout shared by both pipeline kinds.
func (d *wgpuDevice) pipelineLayout(label, source string, layouts []*gpu.BindGroupLayout) (*wgpu.ShaderModule, *wgpu.PipelineLayout, error) {
	native := make([]*wgpu.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		bgl, ok := d.layouts[l.ID()]
		if !ok {
			return nil, nil, fmt.Errorf("%w: layout %q of pipeline %q", gpu.ErrUnknownResource, l.Label(), label)
		}
		native[i] = bgl
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile shader for pipeline %q: %w", label, err)
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: native,
	})
	if err != nil {
		module.Release()
		return nil, nil, fmt.Errorf("failed to create layout for pipeline %q: %w", label, err)
	}
	return module, layout, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc gpu.RenderPipelineDescriptor) (*gpu.RenderPipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	module, layout, err := d.pipelineLayout(desc.Label, desc.Source, desc.BindGroupLayouts)
	if err != nil {
		return nil, err
	}

	rpd := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    toWGPUVertexBuffers(desc.VertexBuffers),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  toWGPUCullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.FragmentEntry != "" {
		targets := make([]wgpu.ColorTargetState, len(desc.ColorFormats))
		for i, f := range desc.ColorFormats {
			format, err := toWGPUTextureFormat(f)
			if err != nil {
				layout.Release()
				module.Release()
				return nil, err
			}
			targets[i] = wgpu.ColorTargetState{Format: format, WriteMask: wgpu.ColorWriteMaskAll}
		}
		rpd.Fragment = &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets:    targets,
		}
	}
	if desc.Depth != nil {
		format, err := toWGPUTextureFormat(desc.Depth.Format)
		if err != nil {
			layout.Release()
			module.Release()
			return nil, err
		}
		rpd.DepthStencil = &wgpu.DepthStencilState{
			Format:              format,
			DepthWriteEnabled:   desc.Depth.WriteEnabled,
			DepthCompare:        toWGPUCompare(desc.Depth.Compare),
			DepthBias:           desc.Depth.DepthBias,
			DepthBiasSlopeScale: desc.Depth.DepthBiasSlopeScale,
			StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	rp, err := d.device.CreateRenderPipeline(rpd)
	if err != nil {
		layout.Release()
		module.Release()
		return nil, fmt.Errorf("failed to create render pipeline %q: %w", desc.Label, err)
	}
	h := gpu.NewRenderPipeline(desc)
	d.renderPipelines[h.ID()] = nativeRenderPipeline{pipeline: rp, layout: layout, module: module}
	d.logger.Debug("created render pipeline", zap.String("pipeline", desc.Label))
	return h, nil
}

func (d *wgpuDevice) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (*gpu.ComputePipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	module, layout, err := d.pipelineLayout(desc.Label, desc.Source, desc.BindGroupLayouts)
	if err != nil {
		return nil, err
	}
	cp, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		layout.Release()
		module.Release()
		return nil, fmt.Errorf("failed to create compute pipeline %q: %w", desc.Label, err)
	}
	h := gpu.NewComputePipeline(desc)
	d.computePipelines[h.ID()] = nativeComputePipeline{pipeline: cp, layout: layout, module: module}
	d.logger.Debug("created compute pipeline", zap.String("pipeline", desc.Label))
	return h, nil
}

// Submit encodes every command buffer into one native command encoder and submits the result to the queue.
func (d *wgpuDevice) Submit(buffers ...*gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	for _, cb := range buffers {
		for i, p := range cb.Passes {
			var err error
			switch p.Kind {
			case gpu.PassKindRender:
				err = d.encodeRenderPass(encoder, p)
			case gpu.PassKindCompute:
				err = d.encodeComputePass(encoder, p)
			}
			if err != nil {
				return fmt.Errorf("command buffer %q pass %d (%s): %w", cb.Label, i, p.Label, err)
			}
		}
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	defer commandBuffer.Release()
	d.queue.Submit(commandBuffer)
	return nil
}

func (d *wgpuDevice) encodeRenderPass(encoder *wgpu.CommandEncoder, p gpu.PassRecord) error {
	desc := &wgpu.RenderPassDescriptor{Label: p.Label}
	for _, ca := range p.Render.ColorAttachments {
		view, ok := d.views[ca.View.ID()]
		if !ok {
			return fmt.Errorf("%w: color target %q", gpu.ErrUnknownResource, ca.View.Label())
		}
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  toWGPULoadOp(ca.LoadOp),
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: ca.ClearValue.R, G: ca.ClearValue.G, B: ca.ClearValue.B, A: ca.ClearValue.A,
			},
		})
	}
	if da := p.Render.DepthAttachment; da != nil {
		view, ok := d.views[da.View.ID()]
		if !ok {
			return fmt.Errorf("%w: depth target %q", gpu.ErrUnknownResource, da.View.Label())
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     toWGPULoadOp(da.LoadOp),
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: da.ClearValue,
		}
	}

	pass := encoder.BeginRenderPass(desc)
	for _, c := range p.Commands {
		switch c.Kind {
		case gpu.CommandSetRenderPipeline:
			rp, ok := d.renderPipelines[c.RenderPipeline.ID()]
			if !ok {
				pass.End()
				return fmt.Errorf("%w: render pipeline %q", gpu.ErrUnknownResource, c.RenderPipeline.Label())
			}
			pass.SetPipeline(rp.pipeline)
		case gpu.CommandSetBindGroup:
			group, ok := d.groups[c.BindGroup.ID()]
			if !ok {
				pass.End()
				return fmt.Errorf("%w: bind group %q", gpu.ErrUnknownResource, c.BindGroup.Label())
			}
			pass.SetBindGroup(c.Slot, group, nil)
		case gpu.CommandSetVertexBuffer:
			buf, ok := d.buffers[c.Buffer.ID()]
			if !ok {
				pass.End()
				return fmt.Errorf("%w: vertex buffer %q", gpu.ErrUnknownResource, c.Buffer.Label())
			}
			pass.SetVertexBuffer(c.Slot, buf, 0, wgpu.WholeSize)
		case gpu.CommandSetIndexBuffer:
			buf, ok := d.buffers[c.Buffer.ID()]
			if !ok {
				pass.End()
				return fmt.Errorf("%w: index buffer %q", gpu.ErrUnknownResource, c.Buffer.Label())
			}
			pass.SetIndexBuffer(buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		case gpu.CommandDraw:
			pass.Draw(c.Count, c.InstanceCount, 0, 0)
		case gpu.CommandDrawIndexed:
			pass.DrawIndexed(c.Count, c.InstanceCount, 0, 0, 0)
		}
	}
	pass.End()
	return nil
}

func (d *wgpuDevice) encodeComputePass(encoder *wgpu.CommandEncoder, p gpu.PassRecord) error {
	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: p.Label})
	for _, c := range p.Commands {
		switch c.Kind {
		case gpu.CommandSetComputePipeline:
			cp, ok := d.computePipelines[c.ComputePipeline.ID()]
			if !ok {
				pass.End()
				return fmt.Errorf("%w: compute pipeline %q", gpu.ErrUnknownResource, c.ComputePipeline.Label())
			}
			pass.SetPipeline(cp.pipeline)
		case gpu.CommandSetBindGroup:
			group, ok := d.groups[c.BindGroup.ID()]
			if !ok {
				pass.End()
				return fmt.Errorf("%w: bind group %q", gpu.ErrUnknownResource, c.BindGroup.Label())
			}
			pass.SetBindGroup(c.Slot, group, nil)
		case gpu.CommandDispatch:
			pass.DispatchWorkgroups(c.Workgroups[0], c.Workgroups[1], c.Workgroups[2])
		}
	}
	pass.End()
	return nil
}

// Release frees the native object behind r. Unknown handles are ignored.
func (d *wgpuDevice) Release(r gpu.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := r.ID()
	if buf, ok := d.buffers[id]; ok {
		buf.Release()
		delete(d.buffers, id)
		return
	}
	if tex, ok := d.textures[id]; ok {
		tex.Release()
		delete(d.textures, id)
		return
	}
	if view, ok := d.views[id]; ok {
		view.Release()
		delete(d.views, id)
		return
	}
	if samp, ok := d.samplers[id]; ok {
		samp.Release()
		delete(d.samplers, id)
		return
	}
	if layout, ok := d.layouts[id]; ok {
		layout.Release()
		delete(d.layouts, id)
		return
	}
	if group, ok := d.groups[id]; ok {
		group.Release()
		delete(d.groups, id)
		return
	}
	if rp, ok := d.renderPipelines[id]; ok {
		rp.pipeline.Release()
		rp.layout.Release()
		rp.module.Release()
		delete(d.renderPipelines, id)
		return
	}
	if cp, ok := d.computePipelines[id]; ok {
		cp.pipeline.Release()
		cp.layout.Release()
		cp.module.Release()
		delete(d.computePipelines, id)
	}
}

// importView registers a view the device did not create, such as the current surface texture, under a fresh
// handle. The native view is released with the handle.
func (d *wgpuDevice) importView(label string, format gpu.TextureFormat, width, height uint32, view *wgpu.TextureView) (*gpu.TextureView, error) {
	tex := gpu.NewTexture(gpu.TextureDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Layers: 1,
		Format: format,
		Usage:  gpu.TextureUsageRenderAttachment,
	})
	h, err := gpu.NewTextureView(tex, gpu.TextureViewDescriptor{Label: label + "_view"})
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.views[h.ID()] = view
	d.mu.Unlock()
	return h, nil
}

// live returns the number of native objects the device still owns.
func (d *wgpuDevice) live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers) + len(d.textures) + len(d.views) + len(d.samplers) +
		len(d.layouts) + len(d.groups) + len(d.renderPipelines) + len(d.computePipelines)
}

func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}
