// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
)

// TextureStagingData holds already-decoded pixel data for a texture pending GPU upload.
// Materials carry these as their texture inputs; the extractor uploads each one once.
type TextureStagingData struct {
	// Pixels is the tightly packed texel data, Width*Height texels in Format.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// Format is the texel format of Pixels. The zero value is treated as gpu.TextureFormatRGBA8UnormSrgb.
	Format gpu.TextureFormat
}

// ResolvedFormat returns Format, defaulting to sRGB RGBA8 when unset.
//
// Returns:
//   - gpu.TextureFormat: the texel format to upload with
func (t TextureStagingData) ResolvedFormat() gpu.TextureFormat {
	if t.Format == gpu.TextureFormatUndefined {
		return gpu.TextureFormatRGBA8UnormSrgb
	}
	return t.Format
}

// Validate checks that Pixels holds exactly Width*Height texels.
//
// Returns:
//   - error: an error describing the size mismatch, or nil
func (t TextureStagingData) Validate() error {
	want := int(t.Width) * int(t.Height) * t.ResolvedFormat().BytesPerTexel()
	if t.Width == 0 || t.Height == 0 {
		return fmt.Errorf("texture has zero extent %dx%d", t.Width, t.Height)
	}
	if len(t.Pixels) != want {
		return fmt.Errorf("texture %dx%d %s needs %d bytes, got %d", t.Width, t.Height, t.ResolvedFormat(), want, len(t.Pixels))
	}
	return nil
}

// SolidTexture builds a 1x1 RGBA8 texture of a single color.
//
// Parameters:
//   - r, g, b, a: the color bytes
//   - format: gpu.TextureFormatRGBA8Unorm for data textures, gpu.TextureFormatRGBA8UnormSrgb for color
//
// Returns:
//   - TextureStagingData: the staging data
func SolidTexture(r, g, b, a byte, format gpu.TextureFormat) TextureStagingData {
	return TextureStagingData{Pixels: []byte{r, g, b, a}, Width: 1, Height: 1, Format: format}
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
type SamplerStagingData struct {
	// AddressMode specifies the addressing mode for texture coordinates outside the [0, 1] range in every dimension.
	AddressMode gpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter gpu.FilterMode
	// Compare makes the sampler a comparison sampler when set, used for shadow lookups.
	Compare gpu.CompareFunction
}

// Descriptor converts the staging data into a device sampler descriptor.
//
// Parameters:
//   - label: the sampler debug label
//
// Returns:
//   - gpu.SamplerDescriptor: the descriptor
func (s SamplerStagingData) Descriptor(label string) gpu.SamplerDescriptor {
	return gpu.SamplerDescriptor{
		Label:       label,
		AddressMode: s.AddressMode,
		MagFilter:   s.MagFilter,
		MinFilter:   s.MinFilter,
		Compare:     s.Compare,
	}
}

// HDRImage is a decoded high dynamic range equirectangular image with 4 float32 channels (RGBA) per pixel,
// rows top to bottom.
type HDRImage struct {
	Width  int
	Height int
	Pixels []float32
}

// Validate checks the image dimensions against the pixel slice.
//
// Returns:
//   - error: an error describing the problem, or nil
func (h *HDRImage) Validate() error {
	if h == nil {
		return fmt.Errorf("hdr image is nil")
	}
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("hdr image has zero extent %dx%d", h.Width, h.Height)
	}
	if len(h.Pixels) != h.Width*h.Height*4 {
		return fmt.Errorf("hdr image %dx%d needs %d floats, got %d", h.Width, h.Height, h.Width*h.Height*4, len(h.Pixels))
	}
	return nil
}

// At returns the RGBA value of a pixel.
//
// Parameters:
//   - x, y: the pixel coordinate (clamped into the image)
//
// Returns:
//   - [4]float32: the RGBA value
func (h *HDRImage) At(x, y int) [4]float32 {
	x = max(0, min(x, h.Width-1))
	y = max(0, min(y, h.Height-1))
	i := (y*h.Width + x) * 4
	return [4]float32{h.Pixels[i], h.Pixels[i+1], h.Pixels[i+2], h.Pixels[i+3]}
}

// Set writes the RGBA value of a pixel.
//
// Parameters:
//   - x, y: the pixel coordinate
//   - c: the RGBA value
func (h *HDRImage) Set(x, y int, c [4]float32) {
	i := (y*h.Width + x) * 4
	copy(h.Pixels[i:i+4], c[:])
}

// Marshal serializes the image as tightly packed little-endian RGBA32Float texels.
//
// Returns:
//   - []byte: Width*Height*16 bytes ready for upload
func (h *HDRImage) Marshal() []byte {
	buf := make([]byte, len(h.Pixels)*4)
	for i, v := range h.Pixels {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}
