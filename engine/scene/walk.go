package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
)

// Visitor receives each node of a Walk with its resolved world matrix. Nil callbacks are skipped.
type Visitor struct {
	Mesh   func(n *Node, world transform.World) error
	Camera func(n *Node, world mgl32.Mat4) error
	Empty  func(n *Node, world mgl32.Mat4) error
}

// Walk visits roots and their descendants depth-first in pre-order, threading parent * local down the tree.
// Mesh nodes also get a normal matrix; a singular one stops the walk with transform.ErrSingularMatrix.
//
// Parameters:
//   - roots: the forest to walk, in order
//   - parent: the world matrix the roots are relative to
//   - v: the callbacks
//
// Returns:
//   - error: the first error from a callback or from normal matrix resolution, wrapped with the node ID
func Walk(roots []*Node, parent mgl32.Mat4, v Visitor) error {
	for _, n := range roots {
		world := transform.Compose(parent, n.local.Matrix())

		var err error
		switch n.kind {
		case NodeKindMesh:
			normal, nerr := transform.NormalMatrix(world)
			if nerr != nil {
				return fmt.Errorf("node %s: %w", n.id, nerr)
			}
			if v.Mesh != nil {
				err = v.Mesh(n, transform.World{Model: world, Normal: normal})
			}
		case NodeKindCamera:
			if v.Camera != nil {
				err = v.Camera(n, world)
			}
		default:
			if v.Empty != nil {
				err = v.Empty(n, world)
			}
		}
		if err != nil {
			return fmt.Errorf("node %s: %w", n.id, err)
		}

		if err := Walk(n.children, world, v); err != nil {
			return err
		}
	}
	return nil
}
