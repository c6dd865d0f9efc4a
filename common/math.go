package common

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// basisEpsilon is the tolerance used when checking vectors for unit length, orthogonality or degeneracy.
const basisEpsilon = 1e-5

// Perspective creates a right-handed perspective projection matrix that maps view-space depth into the WebGPU
// clip-space range [0, 1]. The matrix is column-major (mgl32 convention).
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)

	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// LookTo creates a right-handed view matrix for an eye looking along dir with the given up vector.
// Unlike mgl32.LookAtV this fails loudly when the basis cannot be formed instead of producing NaNs.
//
// Parameters:
//   - eye: the eye position in world space
//   - dir: the viewing direction (need not be normalized)
//   - up: the up hint (need not be normalized, must not be parallel to dir)
//
// Returns:
//   - mgl32.Mat4: the world-to-view matrix
//   - error: ErrDegenerateBasis if dir has zero length or is parallel to up
func LookTo(eye, dir, up mgl32.Vec3) (mgl32.Mat4, error) {
	if dir.Len() < basisEpsilon {
		return mgl32.Ident4(), ErrDegenerateBasis
	}
	f := dir.Normalize()
	s := f.Cross(up)
	if s.Len() < basisEpsilon {
		return mgl32.Ident4(), ErrDegenerateBasis
	}
	s = s.Normalize()
	u := s.Cross(f)

	return mgl32.Mat4{
		s[0], u[0], -f[0], 0,
		s[1], u[1], -f[1], 0,
		s[2], u[2], -f[2], 0,
		-s.Dot(eye), -u.Dot(eye), f.Dot(eye), 1,
	}, nil
}

// FlipX returns a matrix that mirrors clip-space X. Cube-face cameras apply it after the projection so that
// face images land in the layout WebGPU samples cubemaps with.
//
// Returns:
//   - mgl32.Mat4: diag(-1, 1, 1, 1)
func FlipX() mgl32.Mat4 {
	return mgl32.Scale3D(-1, 1, 1)
}

// RotationOnly strips the translation from an affine matrix.
//
// Parameters:
//   - m: the source matrix
//
// Returns:
//   - mgl32.Mat4: m with its translation column reset to (0, 0, 0, 1)
func RotationOnly(m mgl32.Mat4) mgl32.Mat4 {
	m[12], m[13], m[14] = 0, 0, 0
	m[15] = 1
	return m
}

// ApproxEqualMat4 reports whether every element of a and b differs by at most eps.
//
// Parameters:
//   - a, b: the matrices to compare
//   - eps: the absolute tolerance
//
// Returns:
//   - bool: true if the matrices are equal within eps
func ApproxEqualMat4(a, b mgl32.Mat4, eps float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// PutMat4 writes m into buf as 16 little-endian float32 values in column-major order.
//
// Parameters:
//   - buf: destination slice (must be at least 64 bytes)
//   - m: the matrix to write
func PutMat4(buf []byte, m mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
}

// PutVec4 writes four little-endian float32 values into buf.
//
// Parameters:
//   - buf: destination slice (must be at least 16 bytes)
//   - v: the values to write
func PutVec4(buf []byte, v [4]float32) {
	for i, c := range v {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(c))
	}
}

// ReadMat4 decodes 64 little-endian bytes into a column-major matrix.
//
// Parameters:
//   - buf: source slice (must be at least 64 bytes)
//
// Returns:
//   - mgl32.Mat4: the decoded matrix
func ReadMat4(buf []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4 : i*4+4]))
	}
	return m
}
