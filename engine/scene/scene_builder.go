package scene

import (
	"github.com/Carmen-Shannon/oxy-pbr/engine/light"
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/google/uuid"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithEntities adds initial entities to the scene, in order.
//
// Parameters:
//   - entities: the entities to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithEntities(entities ...Entity) SceneBuilderOption {
	return func(s *scene) {
		s.entities = append(s.entities, entities...)
	}
}

// WithLights adds initial point lights to the scene, in order.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.PointLight) SceneBuilderOption {
	return func(s *scene) {
		s.lights = append(s.lights, lights...)
	}
}

// WithAmbientColor sets the scene ambient color.
//
// Parameters:
//   - color: the ambient RGB
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbientColor(color [3]float32) SceneBuilderOption {
	return func(s *scene) {
		s.ambientColor = color
	}
}

// EntityBuilderOption is a functional option for configuring an Entity.
type EntityBuilderOption func(e *entity)

// WithEntityName sets the entity's debug name.
//
// Parameters:
//   - name: the name
//
// Returns:
//   - EntityBuilderOption: option function to apply
func WithEntityName(name string) EntityBuilderOption {
	return func(e *entity) {
		e.name = name
	}
}

// WithEntityID overrides the generated entity ID.
//
// Parameters:
//   - id: the entity ID
//
// Returns:
//   - EntityBuilderOption: option function to apply
func WithEntityID(id uuid.UUID) EntityBuilderOption {
	return func(e *entity) {
		e.id = id
	}
}

// WithEntityTransform sets the entity's initial root transform.
//
// Parameters:
//   - t: the root transform
//
// Returns:
//   - EntityBuilderOption: option function to apply
func WithEntityTransform(t transform.Transform) EntityBuilderOption {
	return func(e *entity) {
		e.root = t
	}
}
