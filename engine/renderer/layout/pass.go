package layout

import "fmt"

// Pass names a pipeline stage with its own program and bind group arrangement.
type Pass int

const (
	PassShadow Pass = iota
	PassSkybox
	PassPBR
	PassTonemap
	PassEquirect
	PassIrradiance
)

func (p Pass) String() string {
	switch p {
	case PassShadow:
		return "shadow"
	case PassSkybox:
		return "skybox"
	case PassPBR:
		return "pbr"
	case PassTonemap:
		return "tonemap"
	case PassEquirect:
		return "equirect"
	case PassIrradiance:
		return "irradiance"
	default:
		return fmt.Sprintf("pass(%d)", int(p))
	}
}

// slotTable lists, for each pass, the bind group kind at each group index.
var slotTable = map[Pass][]BindGroup{
	PassShadow:     {BindGroupShadowFace, BindGroupTransform},
	PassSkybox:     {BindGroupCamera, BindGroupSkybox},
	PassPBR:        {BindGroupCamera, BindGroupTransform, BindGroupMaterial, BindGroupLights, BindGroupEnvironment},
	PassTonemap:    {BindGroupTonemap},
	PassEquirect:   {BindGroupEquirect},
	PassIrradiance: {BindGroupIrradiance},
}

// Groups returns the bind group kinds of a pass in group index order.
//
// Returns:
//   - []BindGroup: the kinds, index i bound at @group(i)
func (p Pass) Groups() []BindGroup {
	return append([]BindGroup(nil), slotTable[p]...)
}

// Slot returns the group index a bind group kind is bound at in this pass.
// Asking for a kind the pass does not use is a programming error and panics.
//
// Parameters:
//   - g: the bind group kind
//
// Returns:
//   - uint32: the group index
func (p Pass) Slot(g BindGroup) uint32 {
	for i, k := range slotTable[p] {
		if k == g {
			return uint32(i)
		}
	}
	panic(fmt.Sprintf("layout: pass %s has no %s bind group", p, g))
}
