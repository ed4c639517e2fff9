package roots

import "sync"

// Container is a node of the scene hierarchy.
type Container interface {
	Name() string
	Children() []Container
	Components() []interface{}
}

// Structural is implemented by components that only link a container into
// the hierarchy and carry no user data. The walker skips them.
type Structural interface {
	Structural() bool
}

// Scene lists the top-level containers, those without a parent.
type Scene interface {
	Name() string
	TopLevel() []Container
}

// Transform is the structural component every Node carries.
type Transform struct {
	Parent *Node
}

// Structural implements Structural.
func (t *Transform) Structural() bool { return true }

// Node is an in-memory Container.
type Node struct {
	name       string
	transform  *Transform
	children   []*Node
	components []interface{}
}

// NewNode creates a detached node.
func NewNode(name string) *Node {
	n := &Node{name: name}
	n.transform = &Transform{}
	n.components = []interface{}{n.transform}
	return n
}

// Name implements Container.
func (n *Node) Name() string { return n.name }

// Parent returns the parent node, nil for a top-level node.
func (n *Node) Parent() *Node { return n.transform.Parent }

// AddChild attaches child under n and returns it.
func (n *Node) AddChild(child *Node) *Node {
	child.transform.Parent = n
	n.children = append(n.children, child)
	return child
}

// AddComponent attaches a component and returns n.
func (n *Node) AddComponent(c interface{}) *Node {
	n.components = append(n.components, c)
	return n
}

// Children implements Container.
func (n *Node) Children() []Container {
	out := make([]Container, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Components implements Container. The structural transform comes first.
func (n *Node) Components() []interface{} {
	return append([]interface{}(nil), n.components...)
}

// SceneGraph is an in-memory Scene. It is safe for concurrent use.
type SceneGraph struct {
	mu    sync.RWMutex
	name  string
	roots []*Node
}

// NewSceneGraph creates an empty scene.
func NewSceneGraph(name string) *SceneGraph {
	return &SceneGraph{name: name}
}

// Name implements Scene.
func (s *SceneGraph) Name() string { return s.name }

// Add places a top-level node in the scene and returns it.
func (s *SceneGraph) Add(n *Node) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = append(s.roots, n)
	return n
}

// TopLevel implements Scene. Nodes that were reparented after Add are not
// top-level anymore.
func (s *SceneGraph) TopLevel() []Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Container, 0, len(s.roots))
	for _, n := range s.roots {
		if n.Parent() == nil {
			out = append(out, n)
		}
	}
	return out
}

// EmptyScene has no containers.
type EmptyScene struct{}

// Name implements Scene.
func (EmptyScene) Name() string { return "none" }

// TopLevel implements Scene.
func (EmptyScene) TopLevel() []Container { return nil }
