package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/software"
	"go.uber.org/zap"
)

// OffscreenFormat is the format of the software backend's presentation target.
const OffscreenFormat = gpu.TextureFormatBGRA8Unorm

// softwareRendererBackend renders into an offscreen texture on the CPU device. Present only counts frames.
type softwareRendererBackend struct {
	mu     *sync.Mutex
	logger *zap.Logger
	device software.Device

	target    *gpu.Texture
	view      *gpu.TextureView
	held      bool
	presented int
}

var _ RendererBackend = &softwareRendererBackend{}

func newSoftwareRendererBackend(workers int, logger *zap.Logger) *softwareRendererBackend {
	opts := []software.DeviceBuilderOption{software.WithLogger(logger)}
	if workers > 0 {
		opts = append(opts, software.WithWorkers(workers))
	}
	return &softwareRendererBackend{
		mu:     &sync.Mutex{},
		logger: logger,
		device: software.NewDevice(opts...),
	}
}

func (b *softwareRendererBackend) Device() gpu.Device {
	return b.device
}

func (b *softwareRendererBackend) SurfaceFormat() gpu.TextureFormat {
	return OffscreenFormat
}

func (b *softwareRendererBackend) ConfigureSurface(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	target, err := b.device.CreateTexture(gpu.TextureDescriptor{
		Label:  "offscreen",
		Width:  width,
		Height: height,
		Layers: 1,
		Format: OffscreenFormat,
		Usage:  gpu.TextureUsageRenderAttachment | gpu.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("failed to create offscreen target: %w", err)
	}
	view, err := b.device.CreateTextureView(target, gpu.TextureViewDescriptor{Label: "offscreen_view"})
	if err != nil {
		b.device.Release(target)
		return fmt.Errorf("failed to create offscreen view: %w", err)
	}
	b.releaseTarget()
	b.target, b.view = target, view
	b.logger.Debug("configured offscreen target", zap.Uint32("width", width), zap.Uint32("height", height))
	return nil
}

func (b *softwareRendererBackend) SetPresentMode(PresentMode) {}

func (b *softwareRendererBackend) AcquireFrame() (*gpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.view == nil {
		return nil, fmt.Errorf("renderer: offscreen target not configured")
	}
	if b.held {
		return nil, ErrFrameHeld
	}
	b.held = true
	return b.view, nil
}

func (b *softwareRendererBackend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.held {
		return ErrNoFrame
	}
	b.held = false
	b.presented++
	return nil
}

func (b *softwareRendererBackend) releaseTarget() {
	if b.view != nil {
		b.device.Release(b.view)
		b.view = nil
	}
	if b.target != nil {
		b.device.Release(b.target)
		b.target = nil
	}
}

func (b *softwareRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseTarget()
	b.device.Close()
}
