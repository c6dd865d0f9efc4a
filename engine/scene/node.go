package scene

import (
	"github.com/Carmen-Shannon/oxy-pbr/engine/model"
	"github.com/Carmen-Shannon/oxy-pbr/engine/transform"
	"github.com/google/uuid"
)

// NodeKind tags which payload a Node carries.
type NodeKind int

const (
	// NodeKindEmpty nodes only group children and contribute their transform.
	NodeKindEmpty NodeKind = iota

	// NodeKindMesh nodes carry a Mesh that produces one render object per primitive.
	NodeKindMesh

	// NodeKindCamera nodes mark a camera mount point in the hierarchy. They draw nothing.
	NodeKindCamera
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindEmpty:
		return "empty"
	case NodeKindMesh:
		return "mesh"
	case NodeKindCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Primitive pairs a geometry with an index into the owning Entity's material list.
type Primitive struct {
	Geometry model.Geometry
	Material int
}

// Mesh is an ordered list of primitives.
type Mesh struct {
	Primitives []Primitive
}

// CameraParams are the projection parameters of a camera node.
type CameraParams struct {
	FovY float32
	Near float32
	Far  float32
}

// Node is one vertex of an Entity's node tree. Exactly one of the payloads matching Kind is set. Nodes are
// immutable once built; children are owned exclusively by their parent.
type Node struct {
	id       uuid.UUID
	name     string
	kind     NodeKind
	local    transform.Transform
	mesh     *Mesh
	camera   *CameraParams
	children []*Node
}

// NewEmptyNode creates a grouping node.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - *Node: the node
func NewEmptyNode(options ...NodeBuilderOption) *Node {
	return newNode(NodeKindEmpty, options)
}

// NewMeshNode creates a node that draws mesh.
//
// Parameters:
//   - mesh: the mesh, must have at least one primitive
//   - options: optional builder options
//
// Returns:
//   - *Node: the node
func NewMeshNode(mesh Mesh, options ...NodeBuilderOption) *Node {
	if len(mesh.Primitives) == 0 {
		panic("scene: mesh node requires at least one primitive")
	}
	n := newNode(NodeKindMesh, options)
	n.mesh = &Mesh{Primitives: append([]Primitive(nil), mesh.Primitives...)}
	return n
}

// NewCameraNode creates a camera mount node.
//
// Parameters:
//   - params: the projection parameters
//   - options: optional builder options
//
// Returns:
//   - *Node: the node
func NewCameraNode(params CameraParams, options ...NodeBuilderOption) *Node {
	n := newNode(NodeKindCamera, options)
	n.camera = &params
	return n
}

func newNode(kind NodeKind, options []NodeBuilderOption) *Node {
	n := &Node{
		id:    uuid.New(),
		kind:  kind,
		local: transform.Identity(),
	}
	for _, option := range options {
		option(n)
	}
	return n
}

func (n *Node) ID() uuid.UUID {
	return n.id
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Kind() NodeKind {
	return n.kind
}

func (n *Node) Local() transform.Transform {
	return n.local
}

// Mesh returns the mesh payload, or nil for non-mesh nodes.
func (n *Node) Mesh() *Mesh {
	return n.mesh
}

// Camera returns the camera payload, or nil for non-camera nodes.
func (n *Node) Camera() *CameraParams {
	return n.camera
}

func (n *Node) Children() []*Node {
	return n.children
}
