// package config loads the engine settings from YAML with the priority defaults < file < flags.
package config

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds all engine settings.
type Config struct {
	Window      WindowConfig      `yaml:"window"`
	Renderer    RendererConfig    `yaml:"renderer"`
	Shadow      ShadowConfig      `yaml:"shadow"`
	Environment EnvironmentConfig `yaml:"environment"`
	Logging     LoggingConfig     `yaml:"logging"`
	Profiling   ProfilingConfig   `yaml:"profiling"`
}

// WindowConfig holds the host window settings.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	VSync  bool   `yaml:"vsync"`
}

// RendererConfig holds device and pass settings. Exposure is the only value applied while running.
type RendererConfig struct {
	ForceFallbackAdapter bool       `yaml:"force_fallback_adapter"`
	Exposure             float32    `yaml:"exposure"`
	ClearColor           [4]float64 `yaml:"clear_color,flow"`
	// MaxPointLights caps the lights one frame accepts. Zero accepts any number.
	MaxPointLights int `yaml:"max_point_lights"`
}

// ShadowConfig holds the point-light shadow cubemap settings. Capacity is the number of light cubes allocated up
// front; the cube array grows past it when a frame holds more lights.
type ShadowConfig struct {
	Resolution uint32  `yaml:"resolution"`
	Near       float32 `yaml:"near"`
	Far        float32 `yaml:"far"`
	Capacity   int     `yaml:"capacity"`
}

// EnvironmentConfig holds the image-based lighting settings. An empty HDRPath selects the procedural sky.
type EnvironmentConfig struct {
	HDRPath        string  `yaml:"hdr_path"`
	CubemapSize    uint32  `yaml:"cubemap_size"`
	IrradianceSize uint32  `yaml:"irradiance_size"`
	SampleDelta    float32 `yaml:"sample_delta"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ProfilingConfig toggles the periodic frame statistics log.
type ProfilingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with the engine defaults.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "oxy-pbr",
			VSync:  true,
		},
		Renderer: RendererConfig{
			Exposure:   1.0,
			ClearColor: [4]float64{0, 0, 0, 1},
		},
		Shadow: ShadowConfig{
			Resolution: light.ShadowMapResolution,
			Near:       light.ShadowNear,
			Far:        light.ShadowFar,
			Capacity:   4,
		},
		Environment: EnvironmentConfig{
			CubemapSize:    512,
			IrradianceSize: 32,
			SampleDelta:    0.025,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the values no subsystem can start with.
//
// Returns:
//   - error: ErrInvalidConfig wrapped with the first offending key, or nil
func (c *Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	case c.Renderer.Exposure <= 0:
		return fmt.Errorf("%w: renderer.exposure %g must be positive", ErrInvalidConfig, c.Renderer.Exposure)
	case c.Renderer.MaxPointLights < 0:
		return fmt.Errorf("%w: renderer.max_point_lights %d must not be negative", ErrInvalidConfig, c.Renderer.MaxPointLights)
	case c.Shadow.Resolution == 0:
		return fmt.Errorf("%w: shadow.resolution must be positive", ErrInvalidConfig)
	case c.Shadow.Capacity <= 0:
		return fmt.Errorf("%w: shadow.capacity %d must be positive", ErrInvalidConfig, c.Shadow.Capacity)
	case c.Shadow.Near <= 0 || c.Shadow.Far <= c.Shadow.Near:
		return fmt.Errorf("%w: shadow near %g / far %g", ErrInvalidConfig, c.Shadow.Near, c.Shadow.Far)
	case c.Environment.CubemapSize == 0 || c.Environment.IrradianceSize == 0:
		return fmt.Errorf("%w: environment cubemap sizes must be positive", ErrInvalidConfig)
	case c.Environment.SampleDelta <= 0:
		return fmt.Errorf("%w: environment.sample_delta %g must be positive", ErrInvalidConfig, c.Environment.SampleDelta)
	}
	return nil
}
