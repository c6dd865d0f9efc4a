package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUPointLightSource is the canonical WGSL definition of the PointLight struct.
// Matches GPUPointLight layout exactly (32 bytes).
//
//go:embed assets/point_light.wgsl
var GPUPointLightSource string

// GPUPointLight is the GPU-aligned representation of a single point light in the lights storage buffer.
// The vec3 padding slots carry the shadow projection range so the shading pass can rebuild face depth.
// Size: 32 bytes.
type GPUPointLight struct {
	Position   [3]float32 // offset  0: world-space light position
	ShadowNear float32    // offset 12: near plane of the shadow face cameras
	Color      [3]float32 // offset 16: RGB color premultiplied by intensity
	ShadowFar  float32    // offset 28: far plane of the shadow face cameras
}

// Size returns the size of the GPUPointLight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUPointLight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUPointLight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUPointLight) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.ShadowNear))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.ShadowFar))
	return buf
}

// GPULightHeaderSource is the canonical WGSL definition of the LightHeader struct.
// Matches GPULightHeader layout exactly (16 bytes).
//
//go:embed assets/light_header.wgsl
var GPULightHeaderSource string

// GPULightHeader is the header prepended to the light storage buffer.
// Contains the ambient color and the active light count.
// Size: 16 bytes (vec3 + u32).
type GPULightHeader struct {
	AmbientColor [3]float32 // offset 0: scene ambient RGB
	LightCount   uint32     // offset 12: number of point lights following the header
}

// Size returns the size of the GPULightHeader struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (h *GPULightHeader) Size() int {
	return int(unsafe.Sizeof(*h))
}

// Marshal serializes the GPULightHeader struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(h.AmbientColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(h.AmbientColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(h.AmbientColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
	return buf
}

// LightBufferSize returns the byte size of a lights storage buffer holding count lights. The buffer always has
// room for at least one light record since zero-sized storage bindings are invalid.
//
// Parameters:
//   - count: the number of point lights
//
// Returns:
//   - uint64: the buffer size in bytes
func LightBufferSize(count int) uint64 {
	return uint64(16 + 32*max(count, 1))
}

// MarshalLightBuffer packs the header and every light record into one storage buffer image.
//
// Parameters:
//   - ambient: the scene ambient color
//   - lights: the light states in binding order
//   - near, far: the shadow face camera clip range written into every record
//
// Returns:
//   - []byte: LightBufferSize(len(lights)) bytes
func MarshalLightBuffer(ambient [3]float32, lights []State, near, far float32) []byte {
	buf := make([]byte, LightBufferSize(len(lights)))
	header := GPULightHeader{AmbientColor: ambient, LightCount: uint32(len(lights))}
	copy(buf[0:16], header.Marshal())
	for i, l := range lights {
		record := l.GPU(near, far)
		copy(buf[16+i*32:], record.Marshal())
	}
	return buf
}

// GPUShadowFaceSource is the canonical WGSL definition of the ShadowFace struct.
// Matches GPUShadowFace layout exactly (80 bytes).
//
//go:embed assets/shadow_face.wgsl
var GPUShadowFaceSource string

// GPUShadowFace is the uniform bound while rendering one face of a point light's depth cubemap.
// Size: 80 bytes.
type GPUShadowFace struct {
	ViewProj      mgl32.Mat4 // offset  0: face projection * face view
	LightPosition [4]float32 // offset 64: light position, w = far plane
}

// Size returns the size of the GPUShadowFace struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUShadowFace) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUShadowFace struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPUShadowFace) Marshal() []byte {
	buf := make([]byte, 80)
	common.PutMat4(buf[0:], g.ViewProj)
	common.PutVec4(buf[64:], g.LightPosition)
	return buf
}
