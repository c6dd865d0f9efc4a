package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Window is the host window the renderer presents into. It owns the platform event loop and reports framebuffer
// resizes and key input to the engine.
type Window interface {
	// SetUpdateCallback sets the function called once per event loop iteration, after pending events were
	// dispatched.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer size changes. Minimizing reports a zero size.
	//
	// Parameters:
	//   - callback: function receiving the new framebuffer width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyCallback sets the function called for key presses, repeats and releases.
	//
	// Parameters:
	//   - callback: function receiving the key code and whether the key is down
	SetKeyCallback(callback func(key common.KeyCode, down bool))

	// SetTitle replaces the title bar text.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SurfaceDescriptor returns the platform surface descriptor (Win32, X11, Wayland or Metal) the renderer
	// creates its WebGPU surface from.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: false once the window was closed by the user or by Close
	IsRunning() bool

	// ProcessMessages runs the event loop until the window closes, calling the update callback every iteration.
	ProcessMessages()

	// Close destroys the window.
	//
	// Returns:
	//   - error: an error if the window was never created or is already closed
	Close() error

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int
}

// engineWindow holds the window configuration, the platform window and the registered callbacks.
type engineWindow struct {
	logger *zap.Logger

	title     string
	width     int
	height    int
	resizable bool

	// platform is the GLFW state, nil until newPlatformWindow succeeds and after Close.
	platform *glfwWindow

	onUpdate func()
	onResize func(width, height int)
	onKey    func(key common.KeyCode, down bool)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. Options are applied over a 1280x720 resizable default.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		logger:    zap.NewNop(),
		title:     "oxy-pbr",
		width:     1280,
		height:    720,
		resizable: true,
	}
	for _, opt := range options {
		opt(w)
	}
	if w.width <= 0 || w.height <= 0 {
		return nil, fmt.Errorf("invalid window size %dx%d", w.width, w.height)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	w.logger.Info("window created", zap.String("title", w.title), zap.Int("width", w.width), zap.Int("height", w.height))
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key common.KeyCode, down bool)) {
	w.onKey = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	if w.platform != nil {
		w.platform.window.SetTitle(title)
	}
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunning(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !platformPollEvents(w) {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Close() error {
	return platformClose(w)
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// resized records a framebuffer size change and forwards it to the resize callback.
func (w *engineWindow) resized(width, height int) {
	if width == w.width && height == w.height {
		return
	}
	w.width = width
	w.height = height
	w.logger.Debug("framebuffer resized", zap.Int("width", width), zap.Int("height", height))
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
