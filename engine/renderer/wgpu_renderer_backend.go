package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

var (
	// ErrFrameHeld is returned by AcquireFrame while the previous frame has not been presented.
	ErrFrameHeld = errors.New("renderer: previous frame not yet presented")
	// ErrNoFrame is returned by Present when no frame was acquired.
	ErrNoFrame = errors.New("renderer: no frame acquired")
	// ErrNoSurfaceFormat is returned when the surface supports no format the pass pipeline can render into.
	ErrNoSurfaceFormat = errors.New("renderer: surface has no supported format")
)

// wgpuRendererBackend presents through a WebGPU surface. The native device is wrapped by a wgpuDevice so the
// rest of the engine only sees gpu.Device.
type wgpuRendererBackend struct {
	mu     *sync.Mutex
	logger *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	native   *wgpu.Device
	device   *wgpuDevice

	nativeFormat wgpu.TextureFormat
	format       gpu.TextureFormat
	alphaMode    wgpu.CompositeAlphaMode
	presentMode  wgpu.PresentMode
	width        uint32
	height       uint32

	frameTexture *wgpu.Texture
	frameView    *gpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackend{}

// newWGPURendererBackend requests an adapter compatible with the window surface and a device with the default
// WebGPU limits.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor from the window
//   - forceFallbackAdapter: request the CPU fallback adapter instead of hardware
//   - logger: the backend logger
//
// Returns:
//   - *wgpuRendererBackend: the backend with an unconfigured surface
//   - error: an error if no adapter, device or supported surface format is available
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, logger *zap.Logger) (*wgpuRendererBackend, error) {
	if surfaceDescriptor == nil {
		return nil, errors.New("renderer: window has no surface descriptor")
	}
	runtime.LockOSThread()

	b := &wgpuRendererBackend{
		mu:          &sync.Mutex{},
		logger:      logger,
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = adapter

	// the PBR pass binds five groups, above the four guaranteed by default
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8
	native, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-pbr device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.native = native
	b.device = newWGPUDevice(native, logger)

	capabilities := b.surface.GetCapabilities(adapter)
	nativeFormat, format, err := chooseSurfaceFormat(capabilities.Formats)
	if err != nil {
		b.Release()
		return nil, err
	}
	b.nativeFormat = nativeFormat
	b.format = format
	if len(capabilities.AlphaModes) > 0 {
		b.alphaMode = capabilities.AlphaModes[0]
	}
	logger.Info("webgpu device ready",
		zap.Bool("fallback_adapter", forceFallbackAdapter),
		zap.Stringer("surface_format", format),
	)
	return b, nil
}

// chooseSurfaceFormat picks the first surface format the core can render into. Linear formats are preferred
// because the tone-map pass applies gamma itself.
//
// Parameters:
//   - formats: the formats the surface supports, in the adapter's preference order
//
// Returns:
//   - wgpu.TextureFormat: the native format to configure the surface with
//   - gpu.TextureFormat: the same format as the core sees it
//   - error: ErrNoSurfaceFormat if none is supported
func chooseSurfaceFormat(formats []wgpu.TextureFormat) (wgpu.TextureFormat, gpu.TextureFormat, error) {
	var (
		fallback       wgpu.TextureFormat
		fallbackFormat gpu.TextureFormat
	)
	for _, wf := range formats {
		f, ok := fromWGPUTextureFormat(wf)
		if !ok || f.IsDepth() {
			continue
		}
		switch f {
		case gpu.TextureFormatBGRA8Unorm, gpu.TextureFormatRGBA8Unorm:
			return wf, f, nil
		}
		if fallbackFormat == gpu.TextureFormatUndefined {
			fallback, fallbackFormat = wf, f
		}
	}
	if fallbackFormat == gpu.TextureFormatUndefined {
		return wgpu.TextureFormatUndefined, gpu.TextureFormatUndefined, ErrNoSurfaceFormat
	}
	return fallback, fallbackFormat, nil
}

func toWGPUPresentMode(mode PresentMode) wgpu.PresentMode {
	if mode == PresentModeUncapped {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

func (b *wgpuRendererBackend) Device() gpu.Device {
	return b.device
}

func (b *wgpuRendererBackend) SurfaceFormat() gpu.TextureFormat {
	return b.format
}

func (b *wgpuRendererBackend) ConfigureSurface(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width == 0 || height == 0 {
		return fmt.Errorf("renderer: cannot configure a %dx%d surface", width, height)
	}
	b.surface.Configure(b.adapter, b.native, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.nativeFormat,
		Width:       width,
		Height:      height,
		PresentMode: b.presentMode,
		AlphaMode:   b.alphaMode,
	})
	b.width, b.height = width, height
	b.logger.Debug("configured surface", zap.Uint32("width", width), zap.Uint32("height", height))
	return nil
}

func (b *wgpuRendererBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = toWGPUPresentMode(mode)
}

func (b *wgpuRendererBackend) AcquireFrame() (*gpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameTexture != nil {
		return nil, ErrFrameHeld
	}
	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("failed to create surface view: %w", err)
	}
	handle, err := b.device.importView("surface", b.format, b.width, b.height, view)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}
	b.frameTexture = surfaceTexture
	b.frameView = handle
	return handle, nil
}

func (b *wgpuRendererBackend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameTexture == nil {
		return ErrNoFrame
	}
	b.surface.Present()
	b.device.Release(b.frameView)
	b.frameTexture.Release()
	b.frameTexture = nil
	b.frameView = nil
	return nil
}

func (b *wgpuRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameTexture != nil {
		b.device.Release(b.frameView)
		b.frameTexture.Release()
		b.frameTexture = nil
		b.frameView = nil
	}
	if b.device != nil {
		if n := b.device.live(); n > 0 {
			b.logger.Warn("releasing device with live resources", zap.Int("resources", n))
		}
		b.device = nil
	}
	if b.native != nil {
		b.native.Release()
		b.native = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
