package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
)

const (
	// HDRFormat is the texel format of the intermediate color target.
	HDRFormat = gpu.TextureFormatRGBA16Float
	// DepthFormat is the format of the depth target shared by the PBR pass.
	DepthFormat = gpu.TextureFormatDepth32Float
)

// Targets are the size-dependent render targets: the HDR color buffer the skybox and PBR passes draw into and
// the depth buffer of the PBR pass.
type Targets struct {
	Width     uint32
	Height    uint32
	Color     *gpu.Texture
	ColorView *gpu.TextureView
	Depth     *gpu.Texture
	DepthView *gpu.TextureView
}

// newTargets creates the HDR color and depth targets for a width by height output.
func newTargets(device gpu.Device, width, height uint32) (Targets, error) {
	t := Targets{Width: width, Height: height}
	var err error
	t.Color, err = device.CreateTexture(gpu.TextureDescriptor{
		Label:  "hdr_color",
		Width:  width,
		Height: height,
		Layers: 1,
		Format: HDRFormat,
		Usage:  gpu.TextureUsageRenderAttachment | gpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return Targets{}, fmt.Errorf("failed to create HDR color target: %w", err)
	}
	if t.ColorView, err = device.CreateTextureView(t.Color, gpu.TextureViewDescriptor{Label: "hdr_color_view"}); err != nil {
		t.release(device)
		return Targets{}, fmt.Errorf("failed to create HDR color view: %w", err)
	}
	t.Depth, err = device.CreateTexture(gpu.TextureDescriptor{
		Label:  "hdr_depth",
		Width:  width,
		Height: height,
		Layers: 1,
		Format: DepthFormat,
		Usage:  gpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.release(device)
		return Targets{}, fmt.Errorf("failed to create depth target: %w", err)
	}
	if t.DepthView, err = device.CreateTextureView(t.Depth, gpu.TextureViewDescriptor{Label: "hdr_depth_view"}); err != nil {
		t.release(device)
		return Targets{}, fmt.Errorf("failed to create depth view: %w", err)
	}
	return t, nil
}

func (t *Targets) release(device gpu.Device) {
	if t.DepthView != nil {
		device.Release(t.DepthView)
	}
	if t.Depth != nil {
		device.Release(t.Depth)
	}
	if t.ColorView != nil {
		device.Release(t.ColorView)
	}
	if t.Color != nil {
		device.Release(t.Color)
	}
	*t = Targets{}
}
