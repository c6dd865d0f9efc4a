package gpu

// Device is a graphics device capable of compute dispatch, layered depth render targets with per-layer views,
// storage buffers and bind groups. Work is executed in Submit order on a single queue.
//
// Device implementations own the native resources behind every handle they return. Handles from one Device
// must not be passed to another.
type Device interface {
	// CreateBuffer allocates a zero-filled buffer.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - *Buffer: the buffer handle
	//   - error: an error if the descriptor is invalid or allocation fails
	CreateBuffer(desc BufferDescriptor) (*Buffer, error)

	// WriteBuffer queues a write of data into buf at offset. The write is ordered before any later Submit.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: byte offset into the buffer
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the write exceeds the buffer or the buffer is unknown
	WriteBuffer(buf *Buffer, offset uint64, data []byte) error

	// CreateTexture allocates a texture with all layers zeroed.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - *Texture: the texture handle
	//   - error: an error if the descriptor is invalid or allocation fails
	CreateTexture(desc TextureDescriptor) (*Texture, error)

	// WriteTexture replaces the full contents of one layer of tex. data must hold Width*Height texels
	// tightly packed in the texture's format.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - layer: the array layer to write
	//   - data: the texel bytes
	//
	// Returns:
	//   - error: an error if the size does not match or the texture is unknown
	WriteTexture(tex *Texture, layer uint32, data []byte) error

	// CreateTextureView creates a view over a layer range of tex.
	//
	// Parameters:
	//   - tex: the viewed texture
	//   - desc: the view descriptor
	//
	// Returns:
	//   - *TextureView: the view handle
	//   - error: an error if the range does not fit the texture
	CreateTextureView(tex *Texture, desc TextureViewDescriptor) (*TextureView, error)

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - desc: the sampler descriptor
	//
	// Returns:
	//   - *Sampler: the sampler handle
	//   - error: an error if creation fails
	CreateSampler(desc SamplerDescriptor) (*Sampler, error)

	// CreateBindGroupLayout creates a bind group layout.
	//
	// Parameters:
	//   - desc: the layout descriptor
	//
	// Returns:
	//   - *BindGroupLayout: the layout handle
	//   - error: an error if creation fails
	CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (*BindGroupLayout, error)

	// CreateBindGroup binds resources against a layout.
	//
	// Parameters:
	//   - desc: the bind group descriptor
	//
	// Returns:
	//   - *BindGroup: the bind group handle
	//   - error: an error if an entry does not satisfy the layout
	CreateBindGroup(desc BindGroupDescriptor) (*BindGroup, error)

	// CreateRenderPipeline compiles a render pipeline.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - *RenderPipeline: the pipeline handle
	//   - error: an error if compilation fails
	CreateRenderPipeline(desc RenderPipelineDescriptor) (*RenderPipeline, error)

	// CreateComputePipeline compiles a compute pipeline.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - *ComputePipeline: the pipeline handle
	//   - error: an error if compilation fails
	CreateComputePipeline(desc ComputePipelineDescriptor) (*ComputePipeline, error)

	// Submit executes command buffers in order on the device queue.
	//
	// Parameters:
	//   - buffers: the command buffers to execute
	//
	// Returns:
	//   - error: an error if a command references an unknown resource or execution fails
	Submit(buffers ...*CommandBuffer) error

	// Release frees the native resource behind a handle. Releasing an unknown handle is a no-op.
	//
	// Parameters:
	//   - r: the resource to release
	Release(r Resource)
}
