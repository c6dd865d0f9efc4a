package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-pbr/engine/window"
	"go.uber.org/zap"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu     *sync.Mutex
	logger *zap.Logger

	backendType RendererBackendType
	backend     RendererBackend
	registry    layout.Registry
	pipelines   pipeline.Cache

	width  uint32
	height uint32

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	softwareWorkers      int
}

// Renderer is the device owner of the engine. It creates the graphics device for the selected backend, keeps the
// layout registry and pipeline cache every subsystem shares, and hands out one presentation view per frame.
type Renderer interface {
	// Device returns the graphics device.
	//
	// Returns:
	//   - gpu.Device: the device every subsystem allocates from
	Device() gpu.Device

	// Registry returns the bind group layout registry of the device.
	//
	// Returns:
	//   - layout.Registry: the shared registry
	Registry() layout.Registry

	// Pipelines returns the pipeline cache of the device.
	//
	// Returns:
	//   - pipeline.Cache: the shared cache
	Pipelines() pipeline.Cache

	// BackendType returns the backend the renderer was created with.
	BackendType() RendererBackendType

	// SurfaceFormat returns the format of the views AcquireFrame returns.
	SurfaceFormat() gpu.TextureFormat

	// Size returns the configured presentation size in pixels.
	Size() (uint32, uint32)

	// Resize reconfigures the presentation target. A zero dimension (a minimized window) is ignored and
	// reported as false.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - bool: true if the target was reconfigured
	//   - error: an error if reconfiguration failed
	Resize(width, height int) (bool, error)

	// SetPresentMode changes the present mode and reconfigures the surface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	//
	// Returns:
	//   - error: an error if reconfiguration failed
	SetPresentMode(mode PresentMode) error

	// AcquireFrame returns the view the next frame renders into.
	//
	// Returns:
	//   - *gpu.TextureView: the output view, valid until Present
	//   - error: an error if the image cannot be acquired
	AcquireFrame() (*gpu.TextureView, error)

	// Present shows the acquired frame.
	//
	// Returns:
	//   - error: an error if no frame was acquired
	Present() error

	// Release frees the pipeline cache, the presentation target and the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for the chosen backend and configures its presentation target to the window
// size. The software backend needs no window; its size comes from WithSize.
//
// Parameters:
//   - backendType: the device implementation to use
//   - win: the window to present into, or nil for BackendTypeSoftware
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the configured renderer
//   - error: an error if the device or surface cannot be created
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		logger:      zap.NewNop(),
		backendType: backendType,
		width:       1280,
		height:      720,
	}
	for _, opt := range options {
		opt(r)
	}
	if win != nil {
		r.width, r.height = uint32(win.Width()), uint32(win.Height())
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.softwareWorkers, r.logger)
	case BackendTypeWGPU:
		if win == nil {
			return nil, fmt.Errorf("renderer: the %s backend needs a window", backendType)
		}
		b, err := newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, r.logger)
		if err != nil {
			return nil, err
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", backendType)
	}

	r.backend.SetPresentMode(r.presentMode)
	if err := r.backend.ConfigureSurface(r.width, r.height); err != nil {
		r.backend.Release()
		return nil, err
	}
	r.registry = layout.NewRegistry(r.backend.Device())
	r.pipelines = pipeline.NewCache(r.backend.Device(), r.registry)
	r.logger.Info("renderer created",
		zap.Stringer("backend", backendType),
		zap.Stringer("surface_format", r.backend.SurfaceFormat()),
		zap.Uint32("width", r.width),
		zap.Uint32("height", r.height),
	)
	return r, nil
}

func (r *renderer) Device() gpu.Device {
	return r.backend.Device()
}

func (r *renderer) Registry() layout.Registry {
	return r.registry
}

func (r *renderer) Pipelines() pipeline.Cache {
	return r.pipelines
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) SurfaceFormat() gpu.TextureFormat {
	return r.backend.SurfaceFormat()
}

func (r *renderer) Size() (uint32, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) Resize(width, height int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width <= 0 || height <= 0 {
		return false, nil
	}
	w, h := uint32(width), uint32(height)
	if w == r.width && h == r.height {
		return false, nil
	}
	if err := r.backend.ConfigureSurface(w, h); err != nil {
		return false, err
	}
	r.width, r.height = w, h
	return true, nil
}

func (r *renderer) SetPresentMode(mode PresentMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.presentMode = mode
	r.backend.SetPresentMode(mode)
	return r.backend.ConfigureSurface(r.width, r.height)
}

func (r *renderer) AcquireFrame() (*gpu.TextureView, error) {
	return r.backend.AcquireFrame()
}

func (r *renderer) Present() error {
	return r.backend.Present()
}

func (r *renderer) Release() {
	r.pipelines.Release()
	r.backend.Release()
	r.logger.Info("renderer released")
}
