package model

import "github.com/google/uuid"

// GeometryBuilderOption is a functional option for configuring a Geometry via NewGeometry.
type GeometryBuilderOption func(*geometry)

// WithName is an option builder that sets the debug name of the Geometry.
//
// Parameters:
//   - name: the geometry name
//
// Returns:
//   - GeometryBuilderOption: a function that applies the name option to a geometry
func WithName(name string) GeometryBuilderOption {
	return func(g *geometry) {
		g.name = name
	}
}

// WithID is an option builder that overrides the generated ID of the Geometry.
// Loaders use this to keep IDs stable across reloads of the same asset.
//
// Parameters:
//   - id: the geometry ID
//
// Returns:
//   - GeometryBuilderOption: a function that applies the ID option to a geometry
func WithID(id uuid.UUID) GeometryBuilderOption {
	return func(g *geometry) {
		g.id = id
	}
}
