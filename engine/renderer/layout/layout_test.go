package layout

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLightsGroupBindsOneCubeArray(t *testing.T) {
	d := BindGroupLights.Descriptor()
	require.Len(t, d.Entries, 3)
	e, ok := d.Entry(LightsBindingShadowMaps)
	require.True(t, ok)
	assert.Equal(t, gpu.BindingTypeDepthTexture, e.Type)
	assert.Equal(t, gpu.TextureViewDimensionCubeArray, e.ViewDimension)
}

func TestPassSlots(t *testing.T) {
	assert.Equal(t, uint32(0), PassPBR.Slot(BindGroupCamera))
	assert.Equal(t, uint32(1), PassPBR.Slot(BindGroupTransform))
	assert.Equal(t, uint32(2), PassPBR.Slot(BindGroupMaterial))
	assert.Equal(t, uint32(3), PassPBR.Slot(BindGroupLights))
	assert.Equal(t, uint32(4), PassPBR.Slot(BindGroupEnvironment))
	assert.Equal(t, uint32(0), PassShadow.Slot(BindGroupShadowFace))
	assert.Equal(t, uint32(1), PassShadow.Slot(BindGroupTransform))

	assert.Panics(t, func() { PassShadow.Slot(BindGroupMaterial) })
}

func TestShadowPassIsDepthOnly(t *testing.T) {
	for _, g := range PassShadow.Groups() {
		assert.NotEqual(t, BindGroupMaterial, g)
		assert.NotEqual(t, BindGroupLights, g)
	}
}

func TestGroupsReturnsCopy(t *testing.T) {
	g := PassPBR.Groups()
	g[0] = BindGroupTonemap
	assert.Equal(t, BindGroupCamera, PassPBR.Groups()[0])
}

func TestDescriptorsAreWellFormed(t *testing.T) {
	for g := BindGroupCamera; g <= BindGroupIrradiance; g++ {
		d := g.Descriptor()
		require.NotEmpty(t, d.Entries, "group %s", g)
		seen := map[uint32]bool{}
		for _, e := range d.Entries {
			assert.False(t, seen[e.Binding], "group %s binding %d repeated", g, e.Binding)
			seen[e.Binding] = true
			if e.Type == gpu.BindingTypeUniformBuffer {
				assert.NotZero(t, e.MinBindingSize, "group %s binding %d", g, e.Binding)
			}
		}
	}
}

type countingDevice struct {
	gpu.Device
	created int
}

func (c *countingDevice) CreateBindGroupLayout(desc gpu.BindGroupLayoutDescriptor) (*gpu.BindGroupLayout, error) {
	c.created++
	return gpu.NewBindGroupLayout(desc), nil
}

func TestRegistryCreatesEachLayoutOnce(t *testing.T) {
	dev := &countingDevice{}
	r := NewRegistry(dev)

	pbr, err := r.PipelineLayouts(PassPBR)
	require.NoError(t, err)
	require.Len(t, pbr, 5)

	shadow, err := r.PipelineLayouts(PassShadow)
	require.NoError(t, err)
	assert.Same(t, pbr[PassPBR.Slot(BindGroupTransform)], shadow[PassShadow.Slot(BindGroupTransform)])
	assert.Equal(t, 6, dev.created)
}
