package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPURecordSizes(t *testing.T) {
	assert.Equal(t, 32, (&GPUPointLight{}).Size())
	assert.Equal(t, 16, (&GPULightHeader{}).Size())
	assert.Equal(t, 80, (&GPUShadowFace{}).Size())
}

func TestMarshalLightBuffer(t *testing.T) {
	a := NewPointLight(WithPosition(1, 2, 3), WithColor(1, 0.5, 0), WithIntensity(2))
	b := NewPointLight(WithPosition(-1, 0, 0))

	buf := MarshalLightBuffer([3]float32{0.1, 0.1, 0.1}, StatesOf([]PointLight{a, b}), ShadowNear, ShadowFar)
	require.Len(t, buf, 16+2*32)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[12:16]))

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4])) }
	assert.Equal(t, float32(3), f(16+8))
	assert.Equal(t, ShadowNear, f(16+12))
	assert.Equal(t, float32(1), f(16+20), "color is premultiplied by intensity")
	assert.Equal(t, ShadowFar, f(16+28))
	assert.Equal(t, float32(-1), f(48))

	assert.Len(t, MarshalLightBuffer([3]float32{}, nil, ShadowNear, ShadowFar), 48)
}

func TestFaceCamerasLookAlongFaceAxes(t *testing.T) {
	pos := mgl32.Vec3{2, 1, -3}
	cams, err := FaceCameras(pos, ShadowNear, ShadowFar)
	require.NoError(t, err)

	for i, cam := range cams {
		face := common.CubeFace(i)
		assert.Equal(t, face, cam.Face)
		b := face.Basis()

		// a point 5 units along the face axis projects to the center of the face
		clip := cam.ViewProj.Mul4x1(pos.Add(b.Direction.Mul(5)).Vec4(1))
		ndc := clip.Vec3().Mul(1 / clip.W())
		assert.InDelta(t, 0, ndc.X(), 1e-5, "face %s", face)
		assert.InDelta(t, 0, ndc.Y(), 1e-5, "face %s", face)
		assert.Greater(t, ndc.Z(), float32(0))
		assert.Less(t, ndc.Z(), float32(1))

		// the opposite direction is behind the camera
		behind := cam.ViewProj.Mul4x1(pos.Sub(b.Direction.Mul(5)).Vec4(1))
		assert.Less(t, behind.W(), float32(0), "face %s", face)
	}
}

// Every face image must agree with the cube sampling layout: the texel at (u, v) on a face sees FaceDirection(face, u, v).
func TestFaceCamerasMatchCubeLayout(t *testing.T) {
	cams, err := FaceCameras(mgl32.Vec3{}, ShadowNear, ShadowFar)
	require.NoError(t, err)

	for i, cam := range cams {
		face := common.CubeFace(i)
		for _, uv := range [][2]float32{{0.2, 0.3}, {0.8, 0.1}, {0.6, 0.9}} {
			dir := common.FaceDirection(face, uv[0], uv[1])
			clip := cam.ViewProj.Mul4x1(dir.Mul(10).Vec4(1))
			u := (clip.X()/clip.W() + 1) / 2
			v := (1 - clip.Y()/clip.W()) / 2
			assert.InDelta(t, uv[0], u, 1e-4, "face %s", face)
			assert.InDelta(t, uv[1], v, 1e-4, "face %s", face)
		}
	}
}

func TestFaceCameraUniform(t *testing.T) {
	cams, err := FaceCameras(mgl32.Vec3{1, 2, 3}, ShadowNear, ShadowFar)
	require.NoError(t, err)
	u := cams[common.CubeFacePositiveX].Uniform(mgl32.Vec3{1, 2, 3}, ShadowFar)
	assert.Equal(t, [4]float32{1, 2, 3, ShadowFar}, u.LightPosition)
	assert.Len(t, u.Marshal(), 80)
}

func TestPointLightSetters(t *testing.T) {
	l := NewPointLight()
	l.SetPosition(mgl32.Vec3{4, 5, 6})
	l.SetColor(0, 1, 0)
	l.SetIntensity(3)
	g := l.State().GPU(1, 2)
	assert.Equal(t, [3]float32{4, 5, 6}, g.Position)
	assert.Equal(t, [3]float32{0, 3, 0}, g.Color)
	assert.NotEqual(t, NewPointLight().ID(), l.ID())
}

func TestStateIsDetachedFromLight(t *testing.T) {
	l := NewPointLight(WithPosition(1, 0, 0), WithColor(1, 0, 0), WithIntensity(2))
	s := l.State()
	l.SetPosition(mgl32.Vec3{9, 9, 9})
	l.SetIntensity(5)

	assert.Equal(t, l.ID(), s.ID)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, s.Position)
	assert.Equal(t, float32(2), s.Intensity)
	assert.Equal(t, mgl32.Vec3{9, 9, 9}, l.State().Position)
}
