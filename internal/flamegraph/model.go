// Package flamegraph renders a dump report as a size-weighted flame graph.
package flamegraph

import "github.com/heap-dump/pkg/model"

// Node is one frame of the flame graph. Value is inclusive, Self is the
// part not attributed to any child frame.
type Node struct {
	Name     string         `json:"name"`
	Kind     model.NodeKind `json:"kind,omitempty"`
	Value    int64          `json:"value"`
	Self     int64          `json:"self,omitempty"`
	Children []*Node        `json:"children,omitempty"`

	// Internal use only, not serialized
	childrenMap map[string]int
}

// NewNode creates a new flame graph node.
func NewNode(name string, kind model.NodeKind) *Node {
	return &Node{
		Name:        name,
		Kind:        kind,
		childrenMap: make(map[string]int),
	}
}

// Child returns the child frame named name, creating it when missing.
// Frames with the same name under one parent are merged.
func (n *Node) Child(name string, kind model.NodeKind) *Node {
	if idx, ok := n.childrenMap[name]; ok {
		return n.Children[idx]
	}
	child := NewNode(name, kind)
	n.childrenMap[name] = len(n.Children)
	n.Children = append(n.Children, child)
	return child
}

// GetChild returns a child node by name, or nil if not found.
func (n *Node) GetChild(name string) *Node {
	if idx, ok := n.childrenMap[name]; ok {
		return n.Children[idx]
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FlameGraph represents the complete flame graph structure.
type FlameGraph struct {
	Root       *Node `json:"root"`
	TotalBytes int64 `json:"totalBytes"`
	MaxDepth   int   `json:"maxDepth,omitempty"`
}

// NewFlameGraph creates a new flame graph with a root node.
func NewFlameGraph() *FlameGraph {
	return &FlameGraph{Root: NewNode("root", model.KindDump)}
}

// Cleanup removes internal maps and drops frames below minPercent (0-100)
// of the total.
func (fg *FlameGraph) Cleanup(minPercent float64) {
	if fg.Root == nil {
		return
	}
	threshold := int64(float64(fg.TotalBytes) * minPercent / 100.0)
	cleanupNode(fg.Root, threshold)
}

func cleanupNode(node *Node, threshold int64) {
	node.childrenMap = nil

	kept := node.Children[:0]
	for _, child := range node.Children {
		if child.Value >= threshold && child.Value > 0 {
			cleanupNode(child, threshold)
			kept = append(kept, child)
		} else {
			// A dropped frame's bytes stay visible as the parent's own.
			node.Self += child.Value
		}
	}
	if len(kept) == 0 {
		node.Children = nil
	} else {
		node.Children = kept
	}
}

// CalculateMaxDepth calculates the maximum depth of the flame graph.
func (fg *FlameGraph) CalculateMaxDepth() int {
	if fg.Root == nil {
		return 0
	}
	fg.MaxDepth = depth(fg.Root, 0)
	return fg.MaxDepth
}

func depth(node *Node, current int) int {
	deepest := current
	for _, child := range node.Children {
		deepest = max(deepest, depth(child, current+1))
	}
	return deepest
}
