// package scene holds the CPU-side scene graph: ordered entities built from node trees, the point lights and the
// active camera. The renderer reads it once per frame during extraction and never writes to it.
package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/camera"
	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
	"github.com/google/uuid"
)

// Scene defines the interface for the scene container. Order matters: entities are extracted in insertion order,
// which fixes both draw order and each entity's offset into the flat material list.
type Scene interface {
	// Name retrieves the scene name.
	//
	// Returns:
	//   - string: the scene name
	Name() string

	// Camera retrieves the active camera.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// SetCamera replaces the active camera.
	//
	// Parameters:
	//   - cam: the camera, must not be nil
	SetCamera(cam camera.Camera)

	// Entities returns a copy of the entity list in extraction order.
	//
	// Returns:
	//   - []Entity: the entities
	Entities() []Entity

	// AddEntity appends an entity.
	//
	// Parameters:
	//   - e: the entity
	AddEntity(e Entity)

	// RemoveEntity removes the entity with the given ID, preserving the order of the rest.
	//
	// Parameters:
	//   - id: the entity ID
	//
	// Returns:
	//   - bool: true if an entity was removed
	RemoveEntity(id uuid.UUID) bool

	// Lights returns a copy of the point light list in binding order.
	//
	// Returns:
	//   - []light.PointLight: the lights
	Lights() []light.PointLight

	// AddLight appends a point light.
	//
	// Parameters:
	//   - l: the light
	AddLight(l light.PointLight)

	// RemoveLight removes the light with the given ID.
	//
	// Parameters:
	//   - id: the light ID
	//
	// Returns:
	//   - bool: true if a light was removed
	RemoveLight(id uuid.UUID) bool

	// AmbientColor retrieves the scene ambient color.
	//
	// Returns:
	//   - [3]float32: the ambient RGB
	AmbientColor() [3]float32

	// SetAmbientColor sets the scene ambient color.
	//
	// Parameters:
	//   - color: the ambient RGB
	SetAmbientColor(color [3]float32)
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.RWMutex

	name         string
	cam          camera.Camera
	entities     []Entity
	lights       []light.PointLight
	ambientColor [3]float32
}

var _ Scene = &scene{}

// NewScene creates a new Scene viewed through cam.
//
// Parameters:
//   - name: the scene name
//   - cam: the active camera, must not be nil
//   - options: optional builder options
//
// Returns:
//   - Scene: the scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	s := &scene{
		mu:           &sync.RWMutex{},
		name:         name,
		cam:          cam,
		ambientColor: [3]float32{0.03, 0.03, 0.03},
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	if cam == nil {
		panic("scene: SetCamera requires a non-nil Camera")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Entities() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entity(nil), s.entities...)
}

func (s *scene) AddEntity(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, e)
}

func (s *scene) RemoveEntity(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entities {
		if e.ID() == id {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return true
		}
	}
	return false
}

func (s *scene) Lights() []light.PointLight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]light.PointLight(nil), s.lights...)
}

func (s *scene) AddLight(l light.PointLight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.lights {
		if l.ID() == id {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return true
		}
	}
	return false
}

func (s *scene) AmbientColor() [3]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambientColor
}

func (s *scene) SetAmbientColor(color [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientColor = color
}
