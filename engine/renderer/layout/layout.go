// package layout is the binding contract between the render passes and their WGSL programs. Every bind group kind has
// one descriptor and every pass lists the group index each kind is bound at. Passes look slots up here instead of
// hard-coding numbers.
package layout

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
)

// BindGroup names a kind of bind group.
type BindGroup int

const (
	// BindGroupCamera holds the 272-byte camera uniform.
	BindGroupCamera BindGroup = iota
	// BindGroupTransform holds one render object's model and normal matrices.
	BindGroupTransform
	// BindGroupMaterial holds a material's factors, its sampler and four textures.
	BindGroupMaterial
	// BindGroupLights holds the lights storage buffer, the shadow comparison sampler and the depth cube array with one
	// cube per light.
	BindGroupLights
	// BindGroupEnvironment holds the irradiance and environment cubes for shading.
	BindGroupEnvironment
	// BindGroupSkybox holds the environment cube for the background.
	BindGroupSkybox
	// BindGroupShadowFace holds one face camera of a point light.
	BindGroupShadowFace
	// BindGroupTonemap holds the HDR color target and the exposure uniform.
	BindGroupTonemap
	// BindGroupEquirect holds the equirectangular source and the cube storage target.
	BindGroupEquirect
	// BindGroupIrradiance holds the environment cube, its sampler, the irradiance storage target and the parameters.
	BindGroupIrradiance
)

func (g BindGroup) String() string {
	switch g {
	case BindGroupCamera:
		return "camera"
	case BindGroupTransform:
		return "transform"
	case BindGroupMaterial:
		return "material"
	case BindGroupLights:
		return "lights"
	case BindGroupEnvironment:
		return "environment"
	case BindGroupSkybox:
		return "skybox"
	case BindGroupShadowFace:
		return "shadow_face"
	case BindGroupTonemap:
		return "tonemap"
	case BindGroupEquirect:
		return "equirect"
	case BindGroupIrradiance:
		return "irradiance"
	default:
		return fmt.Sprintf("bind_group(%d)", int(g))
	}
}

// Binding numbers inside each bind group.
const (
	CameraBindingUniform uint32 = 0

	TransformBindingUniform uint32 = 0

	MaterialBindingParams            uint32 = 0
	MaterialBindingSampler           uint32 = 1
	MaterialBindingBaseColor         uint32 = 2
	MaterialBindingNormal            uint32 = 3
	MaterialBindingMetallicRoughness uint32 = 4
	MaterialBindingOcclusion         uint32 = 5

	LightsBindingBuffer  uint32 = 0
	LightsBindingSampler uint32 = 1
	// LightsBindingShadowMaps is the depth cube array; cube i belongs to light i of the lights buffer.
	LightsBindingShadowMaps uint32 = 2

	EnvironmentBindingSampler    uint32 = 0
	EnvironmentBindingIrradiance uint32 = 1
	EnvironmentBindingCube       uint32 = 2

	SkyboxBindingSampler uint32 = 0
	SkyboxBindingCube    uint32 = 1

	ShadowFaceBindingUniform uint32 = 0

	TonemapBindingHDR     uint32 = 0
	TonemapBindingSampler uint32 = 1
	TonemapBindingParams  uint32 = 2

	EquirectBindingSource uint32 = 0
	EquirectBindingTarget uint32 = 1

	IrradianceBindingSource  uint32 = 0
	IrradianceBindingSampler uint32 = 1
	IrradianceBindingTarget  uint32 = 2
	IrradianceBindingParams  uint32 = 3
)

// Uniform sizes in bytes.
const (
	CameraUniformSize     = 272
	TransformUniformSize  = 128
	MaterialUniformSize   = 32
	ShadowFaceUniformSize = 80
	TonemapUniformSize    = 16
	IrradianceParamsSize  = 16
)

// Descriptor returns the bind group layout descriptor of a bind group kind.
//
// Returns:
//   - gpu.BindGroupLayoutDescriptor: the layout
func (g BindGroup) Descriptor() gpu.BindGroupLayoutDescriptor {
	vf := gpu.ShaderStageVertex | gpu.ShaderStageFragment
	d := gpu.BindGroupLayoutDescriptor{Label: g.String() + "_layout"}

	switch g {
	case BindGroupCamera:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: CameraBindingUniform, Visibility: vf, Type: gpu.BindingTypeUniformBuffer, MinBindingSize: CameraUniformSize},
		}
	case BindGroupTransform:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: TransformBindingUniform, Visibility: gpu.ShaderStageVertex, Type: gpu.BindingTypeUniformBuffer, MinBindingSize: TransformUniformSize},
		}
	case BindGroupMaterial:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: MaterialBindingParams, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeUniformBuffer, MinBindingSize: MaterialUniformSize},
			{Binding: MaterialBindingSampler, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeSampler},
			{Binding: MaterialBindingBaseColor, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimension2D},
			{Binding: MaterialBindingNormal, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimension2D},
			{Binding: MaterialBindingMetallicRoughness, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimension2D},
			{Binding: MaterialBindingOcclusion, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimension2D},
		}
	case BindGroupLights:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: LightsBindingBuffer, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeReadOnlyStorageBuffer, MinBindingSize: 16},
			{Binding: LightsBindingSampler, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeComparisonSampler},
			{Binding: LightsBindingShadowMaps, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeDepthTexture, ViewDimension: gpu.TextureViewDimensionCubeArray},
		}
	case BindGroupEnvironment:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: EnvironmentBindingSampler, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeSampler},
			{Binding: EnvironmentBindingIrradiance, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimensionCube},
			{Binding: EnvironmentBindingCube, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimensionCube},
		}
	case BindGroupSkybox:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: SkyboxBindingSampler, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeSampler},
			{Binding: SkyboxBindingCube, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimensionCube},
		}
	case BindGroupShadowFace:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: ShadowFaceBindingUniform, Visibility: vf, Type: gpu.BindingTypeUniformBuffer, MinBindingSize: ShadowFaceUniformSize},
		}
	case BindGroupTonemap:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: TonemapBindingHDR, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimension2D},
			{Binding: TonemapBindingSampler, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeSampler},
			{Binding: TonemapBindingParams, Visibility: gpu.ShaderStageFragment, Type: gpu.BindingTypeUniformBuffer, MinBindingSize: TonemapUniformSize},
		}
	case BindGroupEquirect:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: EquirectBindingSource, Visibility: gpu.ShaderStageCompute, Type: gpu.BindingTypeUnfilterableTexture, ViewDimension: gpu.TextureViewDimension2D},
			{Binding: EquirectBindingTarget, Visibility: gpu.ShaderStageCompute, Type: gpu.BindingTypeStorageTexture, ViewDimension: gpu.TextureViewDimension2DArray, StorageFormat: gpu.TextureFormatRGBA16Float},
		}
	case BindGroupIrradiance:
		d.Entries = []gpu.BindGroupLayoutEntry{
			{Binding: IrradianceBindingSource, Visibility: gpu.ShaderStageCompute, Type: gpu.BindingTypeFilterableTexture, ViewDimension: gpu.TextureViewDimensionCube},
			{Binding: IrradianceBindingSampler, Visibility: gpu.ShaderStageCompute, Type: gpu.BindingTypeSampler},
			{Binding: IrradianceBindingTarget, Visibility: gpu.ShaderStageCompute, Type: gpu.BindingTypeStorageTexture, ViewDimension: gpu.TextureViewDimension2DArray, StorageFormat: gpu.TextureFormatRGBA16Float},
			{Binding: IrradianceBindingParams, Visibility: gpu.ShaderStageCompute, Type: gpu.BindingTypeUniformBuffer, MinBindingSize: IrradianceParamsSize},
		}
	}
	return d
}
