package flamegraph

import (
	"context"

	"github.com/heap-dump/pkg/model"
)

// GeneratorOptions holds configuration options for the flame graph generator.
type GeneratorOptions struct {
	// MinPercent is the minimum percentage for a frame to be kept.
	MinPercent float64

	// ByType names frames by type only, so that all instances of a type
	// below the same path merge into one frame.
	ByType bool
}

// DefaultGeneratorOptions returns default generator options.
func DefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{MinPercent: 0.01}
}

// Generator builds flame graphs from report trees.
type Generator struct {
	opts *GeneratorOptions
}

// NewGenerator creates a new flame graph generator.
func NewGenerator(opts *GeneratorOptions) *Generator {
	if opts == nil {
		opts = DefaultGeneratorOptions()
	}
	return &Generator{opts: opts}
}

// Generate converts a settled report tree. Cycle references and empty
// nodes produce no frames.
func (g *Generator) Generate(ctx context.Context, root *model.ReportNode) (*FlameGraph, error) {
	fg := NewFlameGraph()
	if root == nil {
		return fg, nil
	}

	visited := 0
	var add func(parent *Node, n *model.ReportNode) error
	add = func(parent *Node, n *model.ReportNode) error {
		if visited++; visited%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		frame := parent.Child(g.frameName(n), n.Kind)
		frame.Value += n.Size
		self := n.Size
		for _, c := range n.Children {
			if c.Contribution() <= 0 {
				continue
			}
			self -= c.Contribution()
			if err := add(frame, c); err != nil {
				return err
			}
		}
		frame.Self += self
		return nil
	}

	for _, c := range root.Children {
		if c.Contribution() <= 0 {
			continue
		}
		if err := add(fg.Root, c); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fg.Root.Value = root.Size
	fg.Root.Self = root.Size - root.ChildSum()
	fg.TotalBytes = root.Size
	fg.Cleanup(g.opts.MinPercent)
	fg.CalculateMaxDepth()
	return fg, nil
}

func (g *Generator) frameName(n *model.ReportNode) string {
	if g.opts.ByType {
		switch {
		case n.Kind == model.KindGroup || n.Kind == model.KindStaticType:
			return n.Label()
		case n.RuntimeType != "":
			return n.RuntimeType
		case n.Type != "":
			return n.Type
		}
	}
	return n.Label()
}
