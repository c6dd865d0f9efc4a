package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCameraLooksDownNegativeZ(t *testing.T) {
	c := NewCamera()
	assert.True(t, c.Forward().ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-6))
}

func TestSetLookDirectionRoundTrip(t *testing.T) {
	c := NewCamera()
	for _, dir := range []mgl32.Vec3{{1, 0, 0}, {0, 0, 1}, {1, 1, -1}, {-0.3, -0.2, 0.9}} {
		require.NoError(t, c.SetLookDirection(dir))
		assert.True(t, c.Forward().ApproxEqualThreshold(dir.Normalize(), 1e-5), "dir %v got %v", dir, c.Forward())
	}
	assert.ErrorIs(t, c.SetLookDirection(mgl32.Vec3{}), common.ErrDegenerateBasis)
}

func TestPitchIsClamped(t *testing.T) {
	c := NewCamera(WithYawPitch(0, 10))
	_, pitch := c.YawPitch()
	assert.Less(t, pitch, float32(1.5708))

	_, err := c.ViewMatrix()
	assert.NoError(t, err)
}

func TestUniform(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{1, 2, 3}), WithAspect(16.0/9.0), WithClip(0.1, 50))
	u, err := c.Uniform()
	require.NoError(t, err)
	assert.Equal(t, 272, u.Size())
	assert.Len(t, u.Marshal(), 272)

	assert.True(t, common.ApproxEqualMat4(u.View.Mul4(u.InvView), mgl32.Ident4(), 1e-5))
	assert.True(t, common.ApproxEqualMat4(u.Proj.Mul4(u.InvProj), mgl32.Ident4(), 1e-4))
	assert.Equal(t, [4]float32{1, 2, 3, 1}, u.Position)

	// the camera position maps to the view-space origin
	o := u.View.Mul4x1(mgl32.Vec4{1, 2, 3, 1})
	assert.InDelta(t, 0, o.Vec3().Len(), 1e-5)

	assert.Contains(t, GPUCameraUniformSource, "inv_proj")
}
