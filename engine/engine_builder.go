package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-pbr/engine/config"
	"github.com/Carmen-Shannon/oxy-pbr/engine/environment"
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pbr/engine/scene"
	"github.com/Carmen-Shannon/oxy-pbr/engine/window"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithConfig sets the configuration the engine and the subsystems it creates are built from.
//
// Parameters:
//   - cfg: the configuration; nil keeps config.Default()
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg *config.Config) EngineBuilderOption {
	return func(e *engine) {
		if cfg != nil {
			e.cfg = cfg
		}
	}
}

// WithConfigWatch reloads the config file at path while the engine runs and applies its exposure on the next frame.
//
// Parameters:
//   - path: the config file to watch
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfigWatch(path string) EngineBuilderOption {
	return func(e *engine) {
		e.configPath = path
	}
}

// WithLogger sets the logger of the engine. Every subsystem the engine creates logs through it under its own name.
//
// Parameters:
//   - logger: the parent logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.base = logger
		}
	}
}

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// The tick callback will be called at this rate for game logic updates.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets the window the engine presents into. Without a renderer option the engine creates a WebGPU
// renderer on this window's surface.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets a renderer created by the caller. The engine does not release it.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithEnvironment sets prebuilt environment cubemaps. The engine does not release them.
//
// Parameters:
//   - env: the environment, built on the same device as the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithEnvironment(env environment.Environment) EngineBuilderOption {
	return func(e *engine) {
		e.env = env
	}
}

// WithHDRLoader sets the decoder used for the config's environment.hdr_path.
//
// Parameters:
//   - loader: decodes an equirectangular HDR file
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithHDRLoader(loader HDRLoader) EngineBuilderOption {
	return func(e *engine) {
		e.hdrLoader = loader
	}
}

// WithScene sets the scene rendered from the first frame on.
//
// Parameters:
//   - s: the Scene to render
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

func withFatal(fatal func(err error)) EngineBuilderOption {
	return func(e *engine) {
		e.fatal = fatal
	}
}
