package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeFaceBasesAreOrthonormal(t *testing.T) {
	seen := map[mgl32.Vec3]CubeFace{}
	for face, b := range CubeFaceBases() {
		require.NoError(t, b.Validate(), "face %s", CubeFace(face))
		assert.InDelta(t, 1.0, b.Right().Len(), 1e-6, "face %s right vector", CubeFace(face))

		// every direction must be exactly one signed axis
		nonZero := 0
		for _, c := range b.Direction {
			if c != 0 {
				nonZero++
				assert.Equal(t, float32(1), mgl32.Abs(c))
			}
		}
		assert.Equal(t, 1, nonZero, "face %s direction %v", CubeFace(face), b.Direction)

		_, dup := seen[b.Direction]
		assert.False(t, dup, "direction %v used twice", b.Direction)
		seen[b.Direction] = CubeFace(face)
	}
	assert.Len(t, seen, CubeFaceCount)
	assert.Equal(t, CubeFacePositiveX, seen[mgl32.Vec3{1, 0, 0}])
	assert.Equal(t, CubeFaceNegativeX, seen[mgl32.Vec3{-1, 0, 0}])
	assert.Equal(t, CubeFacePositiveY, seen[mgl32.Vec3{0, 1, 0}])
	assert.Equal(t, CubeFaceNegativeY, seen[mgl32.Vec3{0, -1, 0}])
	assert.Equal(t, CubeFacePositiveZ, seen[mgl32.Vec3{0, 0, 1}])
	assert.Equal(t, CubeFaceNegativeZ, seen[mgl32.Vec3{0, 0, -1}])
}

func TestFaceBasisValidateRejectsDegenerate(t *testing.T) {
	bad := []FaceBasis{
		{Direction: mgl32.Vec3{0, 0, 0}, Up: mgl32.Vec3{0, 1, 0}},
		{Direction: mgl32.Vec3{1, 0, 0}, Up: mgl32.Vec3{1, 0, 0}},
		{Direction: mgl32.Vec3{2, 0, 0}, Up: mgl32.Vec3{0, 1, 0}},
	}
	for _, b := range bad {
		assert.ErrorIs(t, b.Validate(), ErrDegenerateBasis)
	}
}

func TestFaceDirectionCenterIsFaceAxis(t *testing.T) {
	for face, b := range CubeFaceBases() {
		d := FaceDirection(CubeFace(face), 0.5, 0.5)
		assert.True(t, d.ApproxEqualThreshold(b.Direction, 1e-6), "face %s: %v", CubeFace(face), d)
	}
}

// The WebGPU cubemap lookup for +X maps (u, v) to (1, -(2v-1), -(2u-1)); check the corners.
func TestFaceDirectionMatchesWebGPULayout(t *testing.T) {
	d := FaceDirection(CubeFacePositiveX, 0, 0)
	assert.True(t, d.ApproxEqualThreshold(mgl32.Vec3{1, 1, 1}.Normalize(), 1e-6), "%v", d)

	d = FaceDirection(CubeFacePositiveY, 0, 0)
	assert.True(t, d.ApproxEqualThreshold(mgl32.Vec3{-1, 1, -1}.Normalize(), 1e-6), "%v", d)

	d = FaceDirection(CubeFaceNegativeZ, 1, 1)
	assert.True(t, d.ApproxEqualThreshold(mgl32.Vec3{-1, -1, -1}.Normalize(), 1e-6), "%v", d)
}

func TestDirectionToFaceRoundTrip(t *testing.T) {
	for f := range CubeFaceCount {
		for _, uv := range [][2]float32{{0.5, 0.5}, {0.1, 0.2}, {0.9, 0.3}, {0.25, 0.75}} {
			dir := FaceDirection(CubeFace(f), uv[0], uv[1])
			face, u, v := DirectionToFace(dir)
			assert.Equal(t, CubeFace(f), face)
			assert.InDelta(t, uv[0], u, 1e-5)
			assert.InDelta(t, uv[1], v, 1e-5)
		}
	}
}

func TestEquirectUV(t *testing.T) {
	u, v := EquirectUV(mgl32.Vec3{1, 0, 0})
	assert.InDelta(t, 0.5, u, 1e-6)
	assert.InDelta(t, 0.5, v, 1e-6)

	_, v = EquirectUV(mgl32.Vec3{0, 1, 0})
	assert.InDelta(t, 0.0, v, 1e-6)

	_, v = EquirectUV(mgl32.Vec3{0, -1, 0})
	assert.InDelta(t, 1.0, v, 1e-6)

	u, _ = EquirectUV(mgl32.Vec3{0, 0, 1})
	assert.InDelta(t, 0.75, u, 1e-6)
}

func TestPerspectiveMapsNearAndFarToUnitDepth(t *testing.T) {
	p := Perspective(mgl32.DegToRad(90), 1, 0.5, 25)

	near := p.Mul4x1(mgl32.Vec4{0, 0, -0.5, 1})
	far := p.Mul4x1(mgl32.Vec4{0, 0, -25, 1})
	assert.InDelta(t, 0.0, near.Z()/near.W(), 1e-6)
	assert.InDelta(t, 1.0, far.Z()/far.W(), 1e-6)
}

func TestLookTo(t *testing.T) {
	view, err := LookTo(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	require.NoError(t, err)
	want := mgl32.LookAtV(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{1, 2, 2}, mgl32.Vec3{0, 1, 0})
	assert.True(t, ApproxEqualMat4(view, want, 1e-6))

	_, err = LookTo(mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	assert.ErrorIs(t, err, ErrDegenerateBasis)

	_, err = LookTo(mgl32.Vec3{}, mgl32.Vec3{0, 2, 0}, mgl32.Vec3{0, 1, 0})
	assert.ErrorIs(t, err, ErrDegenerateBasis)
}

func TestMat4RoundTrip(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(0.3))
	buf := make([]byte, 64)
	PutMat4(buf, m)
	assert.Equal(t, m, ReadMat4(buf))
}

func TestStageError(t *testing.T) {
	cause := errors.New("boom")
	err := NewStageError(StageShadow, SubjectLight, 2, cause)
	assert.Equal(t, "shadow: light 2: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("frame: %w", err)
	var se *StageError
	require.ErrorAs(t, wrapped, &se)
	assert.Equal(t, StageShadow, se.Stage)

	assert.Equal(t, "environment: boom", NewStageError(StageEnvironment, SubjectNone, 0, cause).Error())
}

func TestHDRImage(t *testing.T) {
	img := &HDRImage{Width: 2, Height: 1, Pixels: []float32{1, 2, 3, 4, 5, 6, 7, 8}}
	require.NoError(t, img.Validate())
	assert.Equal(t, [4]float32{5, 6, 7, 8}, img.At(1, 0))
	assert.Equal(t, [4]float32{5, 6, 7, 8}, img.At(9, 9))
	assert.Len(t, img.Marshal(), 32)

	assert.Error(t, (&HDRImage{Width: 2, Height: 2, Pixels: make([]float32, 4)}).Validate())
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "label", Coalesce("", "label", "id"))
	assert.Equal(t, "", Coalesce("", ""))
	assert.Equal(t, 3, Coalesce(0, 3))
}
