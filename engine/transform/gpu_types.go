package transform

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUTransformUniformSource is the canonical WGSL definition of the TransformUniform struct.
// Matches GPUTransformUniform layout exactly (128 bytes).
//
//go:embed assets/transform_uniform.wgsl
var GPUTransformUniformSource string

// GPUTransformUniform is the per render object uniform holding the world and normal matrices.
// Size: 128 bytes.
type GPUTransformUniform struct {
	Model  mgl32.Mat4 // offset  0: object to world
	Normal mgl32.Mat4 // offset 64: inverse-transpose of Model
}

// Uniform converts a resolved World into its GPU representation.
//
// Returns:
//   - GPUTransformUniform: the uniform
func (w World) Uniform() GPUTransformUniform {
	return GPUTransformUniform{Model: w.Model, Normal: w.Normal}
}

// Size returns the size of the GPUTransformUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (128)
func (g *GPUTransformUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUTransformUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 128-byte buffer
func (g *GPUTransformUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	common.PutMat4(buf[0:], g.Model)
	common.PutMat4(buf[64:], g.Normal)
	return buf
}
