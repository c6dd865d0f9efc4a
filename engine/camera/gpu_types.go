package camera

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (272 bytes).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Matches the WGSL CameraUniform struct layout exactly (see GPUCameraUniformSource).
// Size: 272 bytes.
type GPUCameraUniform struct {
	View     mgl32.Mat4 // offset   0: world to view (mat4x4<f32>)
	Proj     mgl32.Mat4 // offset  64: view to clip (mat4x4<f32>)
	InvView  mgl32.Mat4 // offset 128: view to world (mat4x4<f32>)
	InvProj  mgl32.Mat4 // offset 192: clip to view (mat4x4<f32>)
	Position [4]float32 // offset 256: world-space camera position, w = 1 (vec4<f32>)
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (272)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	common.PutMat4(buf[0:], g.View)
	common.PutMat4(buf[64:], g.Proj)
	common.PutMat4(buf[128:], g.InvView)
	common.PutMat4(buf[192:], g.InvProj)
	common.PutVec4(buf[256:], g.Position)
	return buf
}
