package software

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/x448/float16"
)

// channelCount is the number of floats stored per texel.
func channelCount(f gpu.TextureFormat) int {
	if f.IsDepth() {
		return 1
	}
	return 4
}

// decodeTexels converts tightly packed texel bytes of a format into float channels. 8-bit formats are normalized
// to [0, 1] and BGRA is swizzled to RGBA.
func decodeTexels(format gpu.TextureFormat, data []byte, out []float32) {
	bpt := format.BytesPerTexel()
	count := len(data) / bpt
	for i := range count {
		src := data[i*bpt : (i+1)*bpt]
		switch format {
		case gpu.TextureFormatRGBA8Unorm, gpu.TextureFormatRGBA8UnormSrgb:
			for c := range 4 {
				out[i*4+c] = float32(src[c]) / 255
			}
		case gpu.TextureFormatBGRA8Unorm, gpu.TextureFormatBGRA8UnormSrgb:
			out[i*4+0] = float32(src[2]) / 255
			out[i*4+1] = float32(src[1]) / 255
			out[i*4+2] = float32(src[0]) / 255
			out[i*4+3] = float32(src[3]) / 255
		case gpu.TextureFormatRGBA16Float:
			for c := range 4 {
				out[i*4+c] = float16.Frombits(binary.LittleEndian.Uint16(src[c*2:])).Float32()
			}
		case gpu.TextureFormatRGBA32Float:
			for c := range 4 {
				out[i*4+c] = math.Float32frombits(binary.LittleEndian.Uint32(src[c*4:]))
			}
		case gpu.TextureFormatDepth32Float:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src))
		}
	}
}

// quantize rounds a value to what a texel of the format can hold, so stores read back the way hardware would.
func quantize(format gpu.TextureFormat, v float32) float32 {
	switch format {
	case gpu.TextureFormatRGBA16Float:
		return float16.Fromfloat32(v).Float32()
	case gpu.TextureFormatRGBA8Unorm, gpu.TextureFormatRGBA8UnormSrgb, gpu.TextureFormatBGRA8Unorm, gpu.TextureFormatBGRA8UnormSrgb:
		v = max(0, min(1, v))
		return float32(math.Round(float64(v)*255)) / 255
	default:
		return v
	}
}

// EncodeRGBA16Float packs float RGBA values into RGBA16Float texel bytes.
//
// Parameters:
//   - values: 4 floats per texel
//
// Returns:
//   - []byte: 8 bytes per texel, little endian half floats
func EncodeRGBA16Float(values []float32) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(v).Bits())
	}
	return out
}
