// package light defines point lights and the per-face cameras used to render their omnidirectional shadow maps.
package light

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// ErrTooManyLights is returned when a scene holds more point lights than the configured light cap.
var ErrTooManyLights = errors.New("too many point lights")

// State is a copy of a light's values taken at one instant. Everything a frame derives from a light, its shadow
// face cameras and its storage buffer record, is computed from the same State.
type State struct {
	ID        uuid.UUID
	Position  mgl32.Vec3
	Color     [3]float32
	Intensity float32
}

// GPU packs the state into its storage buffer record.
//
// Parameters:
//   - near, far: the shadow face camera clip range
//
// Returns:
//   - GPUPointLight: the record
func (s State) GPU(near, far float32) GPUPointLight {
	return GPUPointLight{
		Position:   s.Position,
		ShadowNear: near,
		Color:      [3]float32{s.Color[0] * s.Intensity, s.Color[1] * s.Intensity, s.Color[2] * s.Intensity},
		ShadowFar:  far,
	}
}

// StatesOf takes the state of every light, in order.
//
// Parameters:
//   - lights: the lights
//
// Returns:
//   - []State: one state per light
func StatesOf(lights []PointLight) []State {
	out := make([]State, len(lights))
	for i, l := range lights {
		out[i] = l.State()
	}
	return out
}

// pointLight is the implementation of the PointLight interface.
type pointLight struct {
	mu        *sync.Mutex
	id        uuid.UUID
	position  mgl32.Vec3
	color     [3]float32
	intensity float32
}

// PointLight defines the interface for an omnidirectional light. Every point light casts shadows; the renderer keeps
// one depth cubemap per light, keyed by ID, for as long as the light stays in the scene.
type PointLight interface {
	// ID retrieves the stable identifier of the light.
	//
	// Returns:
	//   - uuid.UUID: the light ID
	ID() uuid.UUID

	// Position retrieves the world-space position of the light.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// Color retrieves the RGB color of the light.
	//
	// Returns:
	//   - [3]float32: the color
	Color() [3]float32

	// Intensity retrieves the scalar intensity multiplier.
	//
	// Returns:
	//   - float32: the intensity
	Intensity() float32

	// SetPosition moves the light. Its shadow face cameras are recomputed on the next extraction.
	//
	// Parameters:
	//   - position: the new world-space position
	SetPosition(position mgl32.Vec3)

	// SetColor updates the RGB color of the light.
	//
	// Parameters:
	//   - r, g, b: the color components
	SetColor(r, g, b float32)

	// SetIntensity updates the intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity
	SetIntensity(intensity float32)

	// State copies every value of the light under one lock.
	//
	// Returns:
	//   - State: the copy
	State() State
}

var _ PointLight = &pointLight{}

// NewPointLight creates a white point light of unit intensity at the origin, then applies options.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - PointLight: the light
func NewPointLight(options ...LightBuilderOption) PointLight {
	l := &pointLight{
		mu:        &sync.Mutex{},
		id:        uuid.New(),
		color:     [3]float32{1, 1, 1},
		intensity: 1.0,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *pointLight) ID() uuid.UUID {
	return l.id
}

func (l *pointLight) Position() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *pointLight) Color() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *pointLight) Intensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intensity
}

func (l *pointLight) SetPosition(position mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = position
}

func (l *pointLight) SetColor(r, g, b float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = [3]float32{r, g, b}
}

func (l *pointLight) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = intensity
}

func (l *pointLight) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{ID: l.id, Position: l.position, Color: l.color, Intensity: l.intensity}
}
