// Package report settles, orders, checks and serializes report trees.
package report

import (
	"fmt"
	"sort"

	"github.com/heap-dump/pkg/model"
)

// Settle computes the sizes of pending nodes bottom-up and then resolves
// each pending cycle reference. A reference to one of its own ancestors
// closes a cycle and stays at 0; any other reference copies the settled
// size of its target. onSettled is called for every node that leaves the
// pending state, children first; it may be nil.
func Settle(root *model.ReportNode, onSettled func(*model.ReportNode) error) error {
	var refs []*model.ReportNode
	path := make(map[*model.ReportNode]struct{})
	if err := settle(root, onSettled, path, &refs); err != nil {
		return err
	}
	for _, ref := range refs {
		target := ref.Target()
		switch {
		case target == nil:
			ref.Size = 0
		case target.Pending():
			return fmt.Errorf("cycle reference %q points at an unsettled node", ref.Label())
		default:
			ref.Size = target.Size
		}
	}
	return nil
}

func settle(n *model.ReportNode, onSettled func(*model.ReportNode) error,
	path map[*model.ReportNode]struct{}, refs *[]*model.ReportNode) error {
	if n.Kind == model.KindCycleRef {
		if !n.Pending() {
			return nil
		}
		if _, ancestor := path[n.Target()]; ancestor {
			n.Size = 0
		} else {
			*refs = append(*refs, n)
		}
		return nil
	}
	path[n] = struct{}{}
	for _, c := range n.Children {
		if err := settle(c, onSettled, path, refs); err != nil {
			return err
		}
	}
	delete(path, n)
	if !n.Pending() {
		return nil
	}
	n.Size = n.Overhead + n.ChildSum()
	if onSettled != nil {
		return onSettled(n)
	}
	return nil
}

// Seal sets n's size from its children when none of them is pending and
// reports whether it did. Pending cycle references do not block sealing
// since they contribute nothing.
func Seal(n *model.ReportNode) bool {
	for _, c := range n.Children {
		if c.Kind != model.KindCycleRef && c.Pending() {
			n.Size = model.PendingSize
			return false
		}
	}
	n.Size = n.Overhead + n.ChildSum()
	return true
}

// SortBySize orders every node's children by descending size. Ties keep
// their traversal order; sizes are not modified.
func SortBySize(root *model.ReportNode) {
	root.Walk(func(n *model.ReportNode, _ int) bool {
		if len(n.Children) > 1 {
			children := n.Children
			sort.SliceStable(children, func(i, j int) bool {
				return children[i].Size > children[j].Size
			})
		}
		return true
	})
}

// Verify checks the roll-up and ordering invariants over the whole tree and
// returns the first violation found.
func Verify(root *model.ReportNode) error {
	var err error
	root.Walk(func(n *model.ReportNode, _ int) bool {
		if err != nil {
			return false
		}
		if n.Size < 0 {
			err = fmt.Errorf("%s %q: unsettled size %d", n.Kind, n.Label(), n.Size)
			return false
		}
		if n.Kind == model.KindCycleRef {
			if len(n.Children) > 0 {
				err = fmt.Errorf("cycle reference %q has children", n.Label())
			}
			return false
		}
		if want := n.Overhead + n.ChildSum(); n.Size != want {
			err = fmt.Errorf("%s %q: size %d, overhead %d + children %d = %d",
				n.Kind, n.Label(), n.Size, n.Overhead, n.ChildSum(), want)
			return false
		}
		for i := 1; i < len(n.Children); i++ {
			if n.Children[i].Size > n.Children[i-1].Size {
				err = fmt.Errorf("%s %q: child %d (%d bytes) sorted after smaller sibling (%d bytes)",
					n.Kind, n.Label(), i, n.Children[i].Size, n.Children[i-1].Size)
				return false
			}
		}
		return true
	})
	return err
}

// VerifyRollup checks only the size invariant, for trees that have not
// been sorted yet.
func VerifyRollup(root *model.ReportNode) error {
	var err error
	root.Walk(func(n *model.ReportNode, _ int) bool {
		if err != nil || n.Kind == model.KindCycleRef {
			return false
		}
		if want := n.Overhead + n.ChildSum(); n.Size != want {
			err = fmt.Errorf("%s %q: size %d, want %d", n.Kind, n.Label(), n.Size, want)
			return false
		}
		return true
	})
	return err
}

// Stats summarizes a settled tree.
type Stats struct {
	Nodes      int
	CycleRefs  int
	Instances  int
	Strings    int
	Arrays     int
	MaxDepth   int
	TotalBytes int64
}

// Collect gathers tree statistics.
func Collect(root *model.ReportNode) Stats {
	s := Stats{TotalBytes: root.Size}
	root.Walk(func(n *model.ReportNode, depth int) bool {
		s.Nodes++
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		switch n.Kind {
		case model.KindCycleRef:
			s.CycleRefs++
		case model.KindInstance:
			s.Instances++
		case model.KindString:
			s.Strings++
		case model.KindArray, model.KindMap:
			s.Arrays++
		}
		return true
	})
	return s
}
