package light

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// LightBuilderOption is a function that configures a PointLight instance during construction.
type LightBuilderOption func(*pointLight)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a pointLight
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *pointLight) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a pointLight
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *pointLight) {
		l.color = [3]float32{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a pointLight
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *pointLight) {
		l.intensity = intensity
	}
}

// WithID is an option builder that overrides the generated light ID.
//
// Parameters:
//   - id: the light ID
//
// Returns:
//   - LightBuilderOption: a function that applies the ID option to a pointLight
func WithID(id uuid.UUID) LightBuilderOption {
	return func(l *pointLight) {
		l.id = id
	}
}
