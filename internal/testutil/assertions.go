package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/heap-dump/pkg/model"
)

// Outline renders a tree one node per line as "<indent>kind name type size",
// which makes two trees comparable without following reference links.
func Outline(root *model.ReportNode) []string {
	var lines []string
	root.Walk(func(n *model.ReportNode, depth int) bool {
		lines = append(lines, fmt.Sprintf("%s%s %s %s %d",
			strings.Repeat("  ", depth), n.Kind, n.Name, n.Type, n.Size))
		return true
	})
	return lines
}

// AssertRollup fails the test for every node whose size is not its
// overhead plus the contribution of its children.
func AssertRollup(t *testing.T, root *model.ReportNode) {
	t.Helper()
	root.Walk(func(n *model.ReportNode, _ int) bool {
		if n.Kind == model.KindCycleRef {
			return false
		}
		if want := n.Overhead + n.ChildSum(); n.Size != want {
			t.Errorf("%s %q: size %d, want overhead %d + children %d",
				n.Kind, n.Label(), n.Size, n.Overhead, n.ChildSum())
		}
		return true
	})
}

// AssertSorted fails the test when some node lists a child before a larger
// sibling.
func AssertSorted(t *testing.T, root *model.ReportNode) {
	t.Helper()
	root.Walk(func(n *model.ReportNode, _ int) bool {
		for i := 1; i < len(n.Children); i++ {
			if n.Children[i].Size > n.Children[i-1].Size {
				t.Errorf("%s %q: child %q (%d) after %q (%d)", n.Kind, n.Label(),
					n.Children[i].Label(), n.Children[i].Size,
					n.Children[i-1].Label(), n.Children[i-1].Size)
			}
		}
		return true
	})
}

// CountKind counts nodes of a kind.
func CountKind(root *model.ReportNode, kind model.NodeKind) int {
	count := 0
	root.Walk(func(n *model.ReportNode, _ int) bool {
		if n.Kind == kind {
			count++
		}
		return true
	})
	return count
}

// MustPath follows names from root and fails the test when a step is missing.
func MustPath(t *testing.T, root *model.ReportNode, names ...string) *model.ReportNode {
	t.Helper()
	cur := root
	for i, name := range names {
		next := cur.Find(name)
		if next == nil {
			var have []string
			for _, c := range cur.Children {
				have = append(have, c.Name)
			}
			t.Fatalf("no child %q under %s (path %v); children: %v",
				name, cur.Label(), names[:i], have)
		}
		cur = next
	}
	return cur
}
