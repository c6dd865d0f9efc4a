package light

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ShadowMapResolution is the default width and height in texels of each face of a point light's depth cubemap.
const ShadowMapResolution = 1024

// ShadowNear is the default near plane of the shadow face cameras.
const ShadowNear float32 = 0.5

// ShadowFar is the default far plane of the shadow face cameras.
const ShadowFar float32 = 25.0

// ShadowFov is the field of view of every face camera. Six 90 degree frusta tile the sphere.
var ShadowFov = mgl32.DegToRad(90)

// FaceCamera is the view and projection used to render one face of a depth cubemap.
type FaceCamera struct {
	Face     common.CubeFace
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	ViewProj mgl32.Mat4
}

// FaceCameras builds the six face cameras of a point light at position, in cube layer order.
// The projection mirrors X so each rendered face lands in the orientation cube sampling expects.
//
// Parameters:
//   - position: the light position
//   - near, far: the clip range
//
// Returns:
//   - [6]FaceCamera: the face cameras, indexed by common.CubeFace
//   - error: common.ErrDegenerateBasis wrapped with the face name if a face basis cannot form a view
func FaceCameras(position mgl32.Vec3, near, far float32) ([common.CubeFaceCount]FaceCamera, error) {
	var out [common.CubeFaceCount]FaceCamera
	proj := common.FlipX().Mul4(common.Perspective(ShadowFov, 1, near, far))
	for i, b := range common.CubeFaceBases() {
		face := common.CubeFace(i)
		view, err := common.LookTo(position, b.Direction, b.Up)
		if err != nil {
			return out, fmt.Errorf("face %s: %w", face, err)
		}
		out[i] = FaceCamera{Face: face, View: view, Proj: proj, ViewProj: proj.Mul4(view)}
	}
	return out, nil
}

// Uniform packs the face camera for the shadow pass.
//
// Parameters:
//   - position: the light position
//   - far: the far plane, stored in the w component
//
// Returns:
//   - GPUShadowFace: the uniform contents
func (f FaceCamera) Uniform(position mgl32.Vec3, far float32) GPUShadowFace {
	return GPUShadowFace{
		ViewProj:      f.ViewProj,
		LightPosition: [4]float32{position.X(), position.Y(), position.Z(), far},
	}
}
