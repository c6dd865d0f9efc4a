package environment

import "go.uber.org/zap"

// BuildOption is a functional option used to configure Build.
type BuildOption func(*config)

// WithCubemapSize sets the face size of the environment cubemap.
//
// Parameters:
//   - size: the face size in texels, must be positive
//
// Returns:
//   - BuildOption: a function that sets the environment face size
func WithCubemapSize(size uint32) BuildOption {
	return func(c *config) {
		if size > 0 {
			c.cubemapSize = size
		}
	}
}

// WithIrradianceSize sets the face size of the irradiance cubemap.
//
// Parameters:
//   - size: the face size in texels, must be positive
//
// Returns:
//   - BuildOption: a function that sets the irradiance face size
func WithIrradianceSize(size uint32) BuildOption {
	return func(c *config) {
		if size > 0 {
			c.irradianceSize = size
		}
	}
}

// WithSampleDelta sets the angular step in radians of the irradiance integration. Smaller steps take more samples.
//
// Parameters:
//   - delta: the step
//
// Returns:
//   - BuildOption: a function that sets the sample step
func WithSampleDelta(delta float32) BuildOption {
	return func(c *config) {
		c.sampleDelta = delta
	}
}

// WithLogger sets the logger that reports build timings.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - BuildOption: a function that sets the logger
func WithLogger(logger *zap.Logger) BuildOption {
	return func(c *config) {
		if logger != nil {
			c.logger = logger.Named("environment")
		}
	}
}
