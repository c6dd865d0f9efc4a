package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

var wgpuTextureFormats = map[gpu.TextureFormat]wgpu.TextureFormat{
	gpu.TextureFormatRGBA8Unorm:     wgpu.TextureFormatRGBA8Unorm,
	gpu.TextureFormatRGBA8UnormSrgb: wgpu.TextureFormatRGBA8UnormSrgb,
	gpu.TextureFormatBGRA8Unorm:     wgpu.TextureFormatBGRA8Unorm,
	gpu.TextureFormatBGRA8UnormSrgb: wgpu.TextureFormatBGRA8UnormSrgb,
	gpu.TextureFormatRGBA16Float:    wgpu.TextureFormatRGBA16Float,
	gpu.TextureFormatRGBA32Float:    wgpu.TextureFormatRGBA32Float,
	gpu.TextureFormatDepth32Float:   wgpu.TextureFormatDepth32Float,
}

// toWGPUTextureFormat maps a device-agnostic format onto its WebGPU equivalent.
func toWGPUTextureFormat(f gpu.TextureFormat) (wgpu.TextureFormat, error) {
	if wf, ok := wgpuTextureFormats[f]; ok {
		return wf, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("%w: texture format %s has no WebGPU equivalent", gpu.ErrInvalidDescriptor, f)
}

// fromWGPUTextureFormat is the inverse of toWGPUTextureFormat. It reports false for surface formats the core
// cannot render into.
func fromWGPUTextureFormat(wf wgpu.TextureFormat) (gpu.TextureFormat, bool) {
	for f, candidate := range wgpuTextureFormats {
		if candidate == wf {
			return f, true
		}
	}
	return gpu.TextureFormatUndefined, false
}

func toWGPUBufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gpu.BufferUsageCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&gpu.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&gpu.BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&gpu.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	return out
}

func toWGPUTextureUsage(u gpu.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&gpu.TextureUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&gpu.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&gpu.TextureUsageTextureBinding != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.TextureUsageStorageBinding != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&gpu.TextureUsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

func toWGPUViewDimension(d gpu.TextureViewDimension) wgpu.TextureViewDimension {
	switch d {
	case gpu.TextureViewDimension2DArray:
		return wgpu.TextureViewDimension2DArray
	case gpu.TextureViewDimensionCube:
		return wgpu.TextureViewDimensionCube
	case gpu.TextureViewDimensionCubeArray:
		return wgpu.TextureViewDimensionCubeArray
	default:
		return wgpu.TextureViewDimension2D
	}
}

func toWGPUShaderStage(s gpu.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&gpu.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gpu.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&gpu.ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

func toWGPUAddressMode(m gpu.AddressMode) wgpu.AddressMode {
	switch m {
	case gpu.AddressModeRepeat:
		return wgpu.AddressModeRepeat
	case gpu.AddressModeMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeClampToEdge
	}
}

func toWGPUFilterMode(m gpu.FilterMode) wgpu.FilterMode {
	if m == gpu.FilterModeLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func toWGPUCompare(c gpu.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gpu.CompareFunctionNever:
		return wgpu.CompareFunctionNever
	case gpu.CompareFunctionLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareFunctionLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.CompareFunctionEqual:
		return wgpu.CompareFunctionEqual
	case gpu.CompareFunctionGreater:
		return wgpu.CompareFunctionGreater
	case gpu.CompareFunctionAlways:
		return wgpu.CompareFunctionAlways
	default:
		return wgpu.CompareFunctionUndefined
	}
}

func toWGPUCullMode(m gpu.CullMode) wgpu.CullMode {
	switch m {
	case gpu.CullModeFront:
		return wgpu.CullModeFront
	case gpu.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func toWGPUVertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	default:
		return wgpu.VertexFormatFloat32x3
	}
}

func toWGPULoadOp(op gpu.LoadOp) wgpu.LoadOp {
	if op == gpu.LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}

// toWGPULayoutEntry classifies a binding the same way the WGSL binding parser does for parsed shader resources.
//
// Parameters:
//   - e: the device-agnostic layout entry
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the WebGPU layout entry
//   - error: an error if a storage texture format has no WebGPU equivalent
func toWGPULayoutEntry(e gpu.BindGroupLayoutEntry) (wgpu.BindGroupLayoutEntry, error) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: toWGPUShaderStage(e.Visibility),
	}

	switch e.Type {
	case gpu.BindingTypeUniformBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = e.MinBindingSize
	case gpu.BindingTypeStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	case gpu.BindingTypeReadOnlyStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case gpu.BindingTypeFilterableTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = toWGPUViewDimension(e.ViewDimension)
	case gpu.BindingTypeUnfilterableTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
		entry.Texture.ViewDimension = toWGPUViewDimension(e.ViewDimension)
	case gpu.BindingTypeDepthTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = toWGPUViewDimension(e.ViewDimension)
	case gpu.BindingTypeStorageTexture:
		format, err := toWGPUTextureFormat(e.StorageFormat)
		if err != nil {
			return wgpu.BindGroupLayoutEntry{}, err
		}
		entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
		entry.StorageTexture.Format = format
		entry.StorageTexture.ViewDimension = toWGPUViewDimension(e.ViewDimension)
	case gpu.BindingTypeSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case gpu.BindingTypeComparisonSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	}
	return entry, nil
}

// toWGPUVertexBuffers builds per-vertex buffer layouts.
func toWGPUVertexBuffers(layouts []gpu.VertexBufferLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, len(layouts))
	for i, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         toWGPUVertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			}
		}
		out[i] = wgpu.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		}
	}
	return out
}
