package pass

import (
	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/gpu"
	"go.uber.org/zap"
)

// PipelineBuilderOption is a functional option used to configure the pass pipeline during construction.
type PipelineBuilderOption func(*renderPipeline)

// WithExposure sets the initial tone-map exposure.
//
// Parameters:
//   - exposure: the exposure multiplier, must be positive
//
// Returns:
//   - PipelineBuilderOption: a function that sets the exposure
func WithExposure(exposure float32) PipelineBuilderOption {
	return func(r *renderPipeline) {
		if exposure > 0 {
			r.exposure = exposure
		}
	}
}

// WithGamma sets the tone-map output gamma.
//
// Parameters:
//   - gamma: the gamma, must be positive
//
// Returns:
//   - PipelineBuilderOption: a function that sets the gamma
func WithGamma(gamma float32) PipelineBuilderOption {
	return func(r *renderPipeline) {
		if gamma > 0 {
			r.gamma = gamma
		}
	}
}

// WithClearColor sets the color the skybox pass clears the HDR target to.
func WithClearColor(c gpu.Color) PipelineBuilderOption {
	return func(r *renderPipeline) {
		r.clearColor = c
	}
}

// WithLogger sets the logger for target recreation and submission failures.
func WithLogger(logger *zap.Logger) PipelineBuilderOption {
	return func(r *renderPipeline) {
		if logger != nil {
			r.logger = logger.Named("pass")
		}
	}
}
