package shadow

import "go.uber.org/zap"

// ShadowsBuilderOption is a functional option used to configure the shadow subsystem during construction.
type ShadowsBuilderOption func(*shadows)

// WithResolution sets the width and height in texels of every cube face.
//
// Parameters:
//   - resolution: the face size, must be positive
//
// Returns:
//   - ShadowsBuilderOption: a function that sets the face resolution
func WithResolution(resolution uint32) ShadowsBuilderOption {
	return func(s *shadows) {
		if resolution > 0 {
			s.resolution = resolution
		}
	}
}

// WithCapacity sets how many light cubes the shared depth array holds before it first has to grow.
//
// Parameters:
//   - lights: the initial cube count, must be positive
//
// Returns:
//   - ShadowsBuilderOption: a function that sets the initial capacity
func WithCapacity(lights int) ShadowsBuilderOption {
	return func(s *shadows) {
		if lights > 0 {
			s.capacity = lights
		}
	}
}

// WithNearFar sets the clip range of the face cameras.
//
// Parameters:
//   - near: the near plane
//   - far: the far plane, must be greater than near
//
// Returns:
//   - ShadowsBuilderOption: a function that sets the clip range
func WithNearFar(near, far float32) ShadowsBuilderOption {
	return func(s *shadows) {
		if near > 0 && far > near {
			s.near = near
			s.far = far
		}
	}
}

// WithLogger sets the logger used for allocation and release messages.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - ShadowsBuilderOption: a function that sets the logger
func WithLogger(logger *zap.Logger) ShadowsBuilderOption {
	return func(s *shadows) {
		if logger != nil {
			s.logger = logger.Named("shadow")
		}
	}
}
