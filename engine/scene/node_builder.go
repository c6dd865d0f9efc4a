package scene

import (
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/google/uuid"
)

// NodeBuilderOption is a functional option for configuring a Node.
type NodeBuilderOption func(n *Node)

// WithNodeName sets the node's debug name.
//
// Parameters:
//   - name: the name
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithNodeName(name string) NodeBuilderOption {
	return func(n *Node) {
		n.name = name
	}
}

// WithNodeID overrides the generated node ID.
//
// Parameters:
//   - id: the node ID
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithNodeID(id uuid.UUID) NodeBuilderOption {
	return func(n *Node) {
		n.id = id
	}
}

// WithLocal sets the node's transform relative to its parent.
//
// Parameters:
//   - local: the local transform
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithLocal(local transform.Transform) NodeBuilderOption {
	return func(n *Node) {
		n.local = local
	}
}

// WithChildren appends child nodes. A node may only have one parent.
//
// Parameters:
//   - children: the child nodes
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithChildren(children ...*Node) NodeBuilderOption {
	return func(n *Node) {
		n.children = append(n.children, children...)
	}
}
