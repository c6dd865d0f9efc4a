// package transform composes local transforms down a node hierarchy into world and normal matrices.
package transform

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrSingularMatrix is returned when a world matrix cannot be inverted, typically because a node or one of its
// ancestors has a zero scale component.
var ErrSingularMatrix = errors.New("singular world matrix")

// singularTolerance is the smallest ratio of |det| to the product of the basis column lengths still treated as
// invertible. The ratio is the sine-volume of the basis, so it ignores uniform scale and only sees collapse.
const singularTolerance = 1e-6

// Transform is a translation, rotation and non-uniform scale. The zero value is not the identity; use Identity.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// Identity returns the transform with no translation, no rotation and unit scale.
//
// Returns:
//   - Transform: the identity transform
func Identity() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// FromTranslation returns an identity transform moved to (x, y, z).
//
// Parameters:
//   - x, y, z: the translation
//
// Returns:
//   - Transform: the transform
func FromTranslation(x, y, z float32) Transform {
	t := Identity()
	t.Translation = mgl32.Vec3{x, y, z}
	return t
}

// Matrix returns T * R * S as a column-major matrix.
//
// Returns:
//   - mgl32.Mat4: the local matrix
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Compose returns parent * local, the world matrix of a child whose parent's world matrix is parent.
//
// Parameters:
//   - parent: the parent's world matrix
//   - local: the child's local matrix
//
// Returns:
//   - mgl32.Mat4: the child's world matrix
func Compose(parent, local mgl32.Mat4) mgl32.Mat4 {
	return parent.Mul4(local)
}

// NormalMatrix returns the inverse-transpose of world, used to transform normals.
//
// Parameters:
//   - world: the world matrix
//
// Returns:
//   - mgl32.Mat4: transpose(inverse(world))
//   - error: ErrSingularMatrix if world is not invertible
func NormalMatrix(world mgl32.Mat4) (mgl32.Mat4, error) {
	basis := world.Mat3()
	volume := float64(basis.Col(0).Len()) * float64(basis.Col(1).Len()) * float64(basis.Col(2).Len())
	det := float64(world.Det())
	if det == 0 || volume == 0 || math.Abs(det) <= singularTolerance*volume {
		return mgl32.Ident4(), ErrSingularMatrix
	}
	normal := world.Inv().Transpose()
	for _, v := range normal {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return mgl32.Ident4(), ErrSingularMatrix
		}
	}
	return normal, nil
}

// World is a resolved world matrix paired with its normal matrix.
type World struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat4
}

// Resolve composes local onto parent and derives the normal matrix in one step.
//
// Parameters:
//   - parent: the parent's world matrix
//   - local: the child's local matrix
//
// Returns:
//   - World: the resolved world and normal matrices
//   - error: ErrSingularMatrix if the composed matrix is not invertible
func Resolve(parent, local mgl32.Mat4) (World, error) {
	model := Compose(parent, local)
	normal, err := NormalMatrix(model)
	return World{Model: model, Normal: normal}, err
}
