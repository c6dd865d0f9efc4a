// package material describes PBR surface materials: scalar factors plus already-decoded texture data.
package material

import (
	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/google/uuid"
)

// TextureSlot names one of the material's texture inputs. The order matches the material bind group bindings.
type TextureSlot int

const (
	TextureSlotBaseColor TextureSlot = iota
	TextureSlotNormal
	TextureSlotMetallicRoughness
	TextureSlotOcclusion
	TextureSlotCount
)

func (s TextureSlot) String() string {
	switch s {
	case TextureSlotBaseColor:
		return "base_color"
	case TextureSlotNormal:
		return "normal"
	case TextureSlotMetallicRoughness:
		return "metallic_roughness"
	case TextureSlotOcclusion:
		return "occlusion"
	default:
		return "unknown"
	}
}

// material is the implementation of the Material interface.
type material struct {
	id        uuid.UUID
	name      string
	baseColor [4]float32
	metallic  float32
	roughness float32
	textures  [TextureSlotCount]*common.TextureStagingData
}

// Material defines the interface for a render material, encapsulating surface properties and texture inputs.
// Materials are immutable once built; the renderer creates their GPU resources once, keyed by ID.
type Material interface {
	// ID retrieves the stable identifier of the material.
	//
	// Returns:
	//   - uuid.UUID: the material ID
	ID() uuid.UUID

	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo/diffuse RGBA color of the material.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// Texture retrieves the texture bound to a slot, or nil when the renderer's default should be used.
	//
	// Parameters:
	//   - slot: the texture slot
	//
	// Returns:
	//   - *common.TextureStagingData: the texture, or nil
	Texture(slot TextureSlot) *common.TextureStagingData

	// Params packs the scalar factors into the GPU uniform layout.
	//
	// Returns:
	//   - GPUMaterialParams: the uniform contents
	Params() GPUMaterialParams
}

var _ Material = &material{}

// NewMaterial creates a new Material with a white base color, zero metallic and full roughness, then applies options.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - Material: the material
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		id:        uuid.New(),
		baseColor: [4]float32{1, 1, 1, 1},
		metallic:  0,
		roughness: 1,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *material) ID() uuid.UUID {
	return m.id
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [4]float32 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) Texture(slot TextureSlot) *common.TextureStagingData {
	if slot < 0 || slot >= TextureSlotCount {
		return nil
	}
	return m.textures[slot]
}

func (m *material) Params() GPUMaterialParams {
	return GPUMaterialParams{
		BaseColor: m.baseColor,
		Metallic:  m.metallic,
		Roughness: m.roughness,
	}
}
