package software

import "go.uber.org/zap"

// DeviceBuilderOption is a functional option applied to a device during construction via NewDevice.
type DeviceBuilderOption func(*device)

// WithWorkers sets how many pool workers rasterization and compute kernels are split across.
// When not specified, runtime.NumCPU() is used.
//
// Parameters:
//   - n: the worker count (minimum 1)
//
// Returns:
//   - DeviceBuilderOption: a function that applies the worker option to a device
func WithWorkers(n int) DeviceBuilderOption {
	return func(d *device) {
		d.workers = n
	}
}

// WithLogger sets the logger the device reports unsupported work to.
//
// Parameters:
//   - logger: the logger, nil keeps the no-op default
//
// Returns:
//   - DeviceBuilderOption: a function that applies the logger option to a device
func WithLogger(logger *zap.Logger) DeviceBuilderOption {
	return func(d *device) {
		if logger != nil {
			d.logger = logger.Named("software")
		}
	}
}
