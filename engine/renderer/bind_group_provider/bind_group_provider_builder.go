package bind_group_provider

import "github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithTextureView binds a borrowed texture view at a binding.
//
// Parameters:
//   - binding: the binding number
//   - view: the view to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the texture view for the binding
func WithTextureView(binding uint32, view *gpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textureViews[binding] = view
	}
}

// WithSampler binds a borrowed sampler at a binding.
//
// Parameters:
//   - binding: the binding number
//   - s: the sampler to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the sampler for the binding
func WithSampler(binding uint32, s *gpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[binding] = s
	}
}

// WithBuffer binds a borrowed buffer at a binding. Init does not create a buffer for it and Write rejects it.
//
// Parameters:
//   - binding: the binding number
//   - buf: the buffer to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the binding
func WithBuffer(binding uint32, buf *gpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithBufferSize sets the initial size of the owned buffer Init creates at a binding. Sizes below the layout's
// minimum binding size are raised to it.
//
// Parameters:
//   - binding: the binding number
//   - size: the size in bytes
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer size for the binding
func WithBufferSize(binding uint32, size uint64) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bufferSizes[binding] = size
	}
}
