package renderer

import "github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"

// RendererBackendType identifies the device implementation behind the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU presents into a window surface through WebGPU.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware renders into an offscreen target on the CPU device. Used for headless runs.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// RendererBackend owns a device and the presentation target frames are rendered into.
type RendererBackend interface {
	// Device returns the graphics device every subsystem allocates from.
	Device() gpu.Device

	// SurfaceFormat returns the texel format of the views AcquireFrame hands out.
	SurfaceFormat() gpu.TextureFormat

	// ConfigureSurface (re)creates the presentation target at the given size.
	//
	// Parameters:
	//   - width: the target width in pixels
	//   - height: the target height in pixels
	//
	// Returns:
	//   - error: an error if the target cannot be configured
	ConfigureSurface(width, height uint32) error

	// SetPresentMode selects the present mode used by the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// AcquireFrame returns a view of the next presentation image. Only one frame may be held at a time.
	//
	// Returns:
	//   - *gpu.TextureView: the output view, valid until Present
	//   - error: an error if the image cannot be acquired or a frame is still held
	AcquireFrame() (*gpu.TextureView, error)

	// Present shows the held frame and releases its view.
	//
	// Returns:
	//   - error: an error if no frame is held
	Present() error

	// Release frees the presentation target and the device.
	Release()
}
