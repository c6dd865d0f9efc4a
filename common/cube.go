package common

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrDegenerateBasis is returned when a camera or cube-face basis cannot be built, for example a zero-length
// direction or an up vector parallel to the direction.
var ErrDegenerateBasis = errors.New("degenerate face basis")

// CubeFace is a layer index of a cubemap in the fixed order +X, -X, +Y, -Y, +Z, -Z.
type CubeFace int

const (
	CubeFacePositiveX CubeFace = iota
	CubeFaceNegativeX
	CubeFacePositiveY
	CubeFaceNegativeY
	CubeFacePositiveZ
	CubeFaceNegativeZ
)

// CubeFaceCount is the number of layers in every cubemap.
const CubeFaceCount = 6

func (f CubeFace) String() string {
	switch f {
	case CubeFacePositiveX:
		return "+X"
	case CubeFaceNegativeX:
		return "-X"
	case CubeFacePositiveY:
		return "+Y"
	case CubeFaceNegativeY:
		return "-Y"
	case CubeFacePositiveZ:
		return "+Z"
	case CubeFaceNegativeZ:
		return "-Z"
	default:
		return fmt.Sprintf("CubeFace(%d)", int(f))
	}
}

// FaceBasis is the (direction, up) pair a cube-face camera looks along.
type FaceBasis struct {
	Direction mgl32.Vec3
	Up        mgl32.Vec3
}

// Right returns the world direction texel u increases toward on this face.
//
// Returns:
//   - mgl32.Vec3: Up x Direction
func (b FaceBasis) Right() mgl32.Vec3 {
	return b.Up.Cross(b.Direction)
}

// Validate checks that Direction and Up are unit length and orthogonal.
//
// Returns:
//   - error: ErrDegenerateBasis wrapped with the failing property, or nil
func (b FaceBasis) Validate() error {
	if math32.Abs(b.Direction.Len()-1) > basisEpsilon {
		return fmt.Errorf("%w: direction %v is not unit length", ErrDegenerateBasis, b.Direction)
	}
	if math32.Abs(b.Up.Len()-1) > basisEpsilon {
		return fmt.Errorf("%w: up %v is not unit length", ErrDegenerateBasis, b.Up)
	}
	if math32.Abs(b.Direction.Dot(b.Up)) > basisEpsilon {
		return fmt.Errorf("%w: direction %v and up %v are not orthogonal", ErrDegenerateBasis, b.Direction, b.Up)
	}
	return nil
}

// cubeFaceBases follows the WebGPU cubemap layer convention. Shadow-map face cameras and the environment
// compute kernels both derive their texel directions from this table.
var cubeFaceBases = [CubeFaceCount]FaceBasis{
	CubeFacePositiveX: {Direction: mgl32.Vec3{1, 0, 0}, Up: mgl32.Vec3{0, 1, 0}},
	CubeFaceNegativeX: {Direction: mgl32.Vec3{-1, 0, 0}, Up: mgl32.Vec3{0, 1, 0}},
	CubeFacePositiveY: {Direction: mgl32.Vec3{0, 1, 0}, Up: mgl32.Vec3{0, 0, -1}},
	CubeFaceNegativeY: {Direction: mgl32.Vec3{0, -1, 0}, Up: mgl32.Vec3{0, 0, 1}},
	CubeFacePositiveZ: {Direction: mgl32.Vec3{0, 0, 1}, Up: mgl32.Vec3{0, 1, 0}},
	CubeFaceNegativeZ: {Direction: mgl32.Vec3{0, 0, -1}, Up: mgl32.Vec3{0, 1, 0}},
}

// CubeFaceBases returns the canonical (direction, up) pairs in layer order.
//
// Returns:
//   - [6]FaceBasis: a copy of the basis table
func CubeFaceBases() [CubeFaceCount]FaceBasis {
	return cubeFaceBases
}

// Basis returns the canonical basis of a face.
//
// Returns:
//   - FaceBasis: the (direction, up) pair
func (f CubeFace) Basis() FaceBasis {
	return cubeFaceBases[f]
}

// FaceDirection maps a normalized texel coordinate on a face to the unit world direction it represents.
// u grows to the right and v grows downward, matching texel rows.
//
// Parameters:
//   - face: the cube face
//   - u, v: texel coordinates in [0, 1]
//
// Returns:
//   - mgl32.Vec3: the unit direction through that texel
func FaceDirection(face CubeFace, u, v float32) mgl32.Vec3 {
	b := cubeFaceBases[face]
	d := b.Direction.
		Add(b.Right().Mul(2*u - 1)).
		Add(b.Up.Mul(1 - 2*v))
	return d.Normalize()
}

// DirectionToFace is the inverse of FaceDirection: it selects the face of the major axis of dir and returns the
// texel coordinate dir passes through.
//
// Parameters:
//   - dir: a non-zero direction
//
// Returns:
//   - CubeFace: the face hit by dir
//   - float32: u in [0, 1]
//   - float32: v in [0, 1]
func DirectionToFace(dir mgl32.Vec3) (CubeFace, float32, float32) {
	ax, ay, az := math32.Abs(dir[0]), math32.Abs(dir[1]), math32.Abs(dir[2])

	var face CubeFace
	var ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		face = CubeFacePositiveX
		if dir[0] < 0 {
			face = CubeFaceNegativeX
		}
	case ay >= az:
		ma = ay
		face = CubeFacePositiveY
		if dir[1] < 0 {
			face = CubeFaceNegativeY
		}
	default:
		ma = az
		face = CubeFacePositiveZ
		if dir[2] < 0 {
			face = CubeFaceNegativeZ
		}
	}

	b := cubeFaceBases[face]
	u := (dir.Dot(b.Right())/ma + 1) * 0.5
	v := (1 - dir.Dot(b.Up)/ma) * 0.5
	return face, u, v
}

// EquirectUV maps a unit direction to the texture coordinate of an equirectangular (longitude/latitude) image.
// u = 0.5 at +X, v = 0 at +Y (top row).
//
// Parameters:
//   - dir: a unit direction
//
// Returns:
//   - float32: u in [0, 1)
//   - float32: v in [0, 1]
func EquirectUV(dir mgl32.Vec3) (float32, float32) {
	u := 0.5 + math32.Atan2(dir[2], dir[0])/(2*math32.Pi)
	y := dir[1]
	if y > 1 {
		y = 1
	} else if y < -1 {
		y = -1
	}
	v := math32.Acos(y) / math32.Pi
	return u, v
}
