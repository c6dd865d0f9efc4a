package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-pbr/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/google/uuid"
)

// entity is the implementation of the Entity interface.
type entity struct {
	mu        *sync.Mutex
	id        uuid.UUID
	name      string
	root      transform.Transform
	nodes     []*Node
	materials []material.Material
}

// Entity defines the interface for one renderable object: a root transform, a forest of nodes and the materials
// its mesh primitives index into. Only the root transform may change after construction.
type Entity interface {
	// ID retrieves the stable identifier of the entity.
	//
	// Returns:
	//   - uuid.UUID: the entity ID
	ID() uuid.UUID

	// Name retrieves the entity's debug name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Transform retrieves the root transform applied above every root node.
	//
	// Returns:
	//   - transform.Transform: the root transform
	Transform() transform.Transform

	// SetTransform replaces the root transform. Safe to call between frames from game logic.
	//
	// Parameters:
	//   - t: the new root transform
	SetTransform(t transform.Transform)

	// Nodes retrieves the root nodes in draw order.
	//
	// Returns:
	//   - []*Node: the root nodes
	Nodes() []*Node

	// Materials retrieves the materials referenced by primitive material indices.
	//
	// Returns:
	//   - []material.Material: the materials
	Materials() []material.Material
}

var _ Entity = &entity{}

// NewEntity creates a new Entity from its node forest and materials.
//
// Parameters:
//   - nodes: the root nodes
//   - materials: the entity-local material list
//   - options: optional builder options
//
// Returns:
//   - Entity: the entity
func NewEntity(nodes []*Node, materials []material.Material, options ...EntityBuilderOption) Entity {
	e := &entity{
		mu:        &sync.Mutex{},
		id:        uuid.New(),
		root:      transform.Identity(),
		nodes:     append([]*Node(nil), nodes...),
		materials: append([]material.Material(nil), materials...),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *entity) ID() uuid.UUID {
	return e.id
}

func (e *entity) Name() string {
	return e.name
}

func (e *entity) Transform() transform.Transform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

func (e *entity) SetTransform(t transform.Transform) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.root = t
}

func (e *entity) Nodes() []*Node {
	return e.nodes
}

func (e *entity) Materials() []material.Material {
	return e.materials
}
