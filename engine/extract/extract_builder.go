package extract

import "go.uber.org/zap"

// ExtractorBuilderOption is a functional option used to configure an Extractor during construction.
type ExtractorBuilderOption func(*extractor)

// WithMaxLights caps the number of point lights one extraction accepts. Zero, the default, accepts any number;
// the shadow cube array grows to fit.
//
// Parameters:
//   - n: the light cap
//
// Returns:
//   - ExtractorBuilderOption: a function that sets the light cap
func WithMaxLights(n int) ExtractorBuilderOption {
	return func(x *extractor) {
		if n >= 0 {
			x.maxLights = n
		}
	}
}

// WithLogger sets the logger for arena uploads and sweeps.
func WithLogger(logger *zap.Logger) ExtractorBuilderOption {
	return func(x *extractor) {
		if logger != nil {
			x.logger = logger.Named("extract")
		}
	}
}
