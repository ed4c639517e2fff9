// Package model defines the report tree produced by a heap dump.
package model

// NodeKind tags a report node.
type NodeKind string

const (
	KindDump       NodeKind = "dump"
	KindGroup      NodeKind = "group"
	KindStaticType NodeKind = "type"
	KindContainer  NodeKind = "container"
	KindInstance   NodeKind = "object"
	KindField      NodeKind = "field"
	KindArray      NodeKind = "array"
	KindMap        NodeKind = "map"
	KindString     NodeKind = "string"
	KindValue      NodeKind = "value"
	KindStruct     NodeKind = "struct"
	KindCycleRef   NodeKind = "ref"
	KindNull       NodeKind = "null"
	KindIgnored    NodeKind = "ignored"
)

// PendingSize marks a node whose size is not known yet.
const PendingSize int64 = -1

// Ignore reasons for static holders that are not enumerated.
const (
	ReasonEnum    = "IsEnum"
	ReasonGeneric = "IsGenericType"
)

// ReportNode is one entity in the report tree.
//
// Once settled, Size == Overhead + sum of the children's Contribution().
// A cycle reference keeps the referenced object's size in Size for display
// but contributes nothing to its parent.
type ReportNode struct {
	Kind        NodeKind      `json:"kind"`
	Name        string        `json:"name,omitempty"`
	Type        string        `json:"type,omitempty"`
	RuntimeType string        `json:"runtime_type,omitempty"`
	Size        int64         `json:"size"`
	Overhead    int64         `json:"overhead,omitempty"`
	Length      int64         `json:"length,omitempty"`
	Rank        int           `json:"rank,omitempty"`
	Value       string        `json:"value,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Children    []*ReportNode `json:"children,omitempty"`

	// target links a cycle reference to the node it stands in for.
	target *ReportNode
}

// NewNode creates a node with the given kind and names.
func NewNode(kind NodeKind, name, typeName string) *ReportNode {
	return &ReportNode{Kind: kind, Name: name, Type: typeName}
}

// AddChild appends child and returns it.
func (n *ReportNode) AddChild(child *ReportNode) *ReportNode {
	n.Children = append(n.Children, child)
	return child
}

// Contribution is what this node adds to its parent's size.
func (n *ReportNode) Contribution() int64 {
	if n.Kind == KindCycleRef || n.Size < 0 {
		return 0
	}
	return n.Size
}

// Pending reports whether the node's size is still unknown.
func (n *ReportNode) Pending() bool {
	return n.Size == PendingSize
}

// Target returns the node a cycle reference points at, if known.
func (n *ReportNode) Target() *ReportNode {
	return n.target
}

// PointTo turns n into a cycle reference to target.
func (n *ReportNode) PointTo(target *ReportNode) {
	n.Kind = KindCycleRef
	n.target = target
	n.Children = nil
	n.Overhead = 0
	if target != nil && target.Size >= 0 {
		n.Size = target.Size
	}
}

// ChildSum sums the contributions of the direct children.
func (n *ReportNode) ChildSum() int64 {
	var sum int64
	for _, c := range n.Children {
		sum += c.Contribution()
	}
	return sum
}

// Walk visits the tree in pre-order. Returning false from fn skips the
// node's children.
func (n *ReportNode) Walk(fn func(node *ReportNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *ReportNode) walk(fn func(*ReportNode, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the subtree.
func (n *ReportNode) Count() int {
	count := 0
	n.Walk(func(*ReportNode, int) bool {
		count++
		return true
	})
	return count
}

// Find returns the first direct child with the given name.
func (n *ReportNode) Find(name string) *ReportNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Path follows names through direct children, returning nil when a step is
// missing.
func (n *ReportNode) Path(names ...string) *ReportNode {
	cur := n
	for _, name := range names {
		if cur = cur.Find(name); cur == nil {
			return nil
		}
	}
	return cur
}

// Label is a short display string for the node.
func (n *ReportNode) Label() string {
	switch {
	case n.Name != "" && n.Type != "":
		return n.Name + " (" + n.Type + ")"
	case n.Name != "":
		return n.Name
	case n.Type != "":
		return n.Type
	default:
		return string(n.Kind)
	}
}
