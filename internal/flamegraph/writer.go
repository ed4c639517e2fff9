package flamegraph

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/heap-dump/pkg/writer"
)

// JSONWriter writes flame graph data as JSON.
type JSONWriter = writer.JSONWriter[*FlameGraph]

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter() *JSONWriter {
	return writer.NewJSONWriter[*FlameGraph]()
}

// FoldedWriter writes the collapsed format read by flamegraph.pl: one
// "frame;frame;frame bytes" line per frame with its own bytes.
type FoldedWriter struct{}

// NewFoldedWriter creates a new folded format writer.
func NewFoldedWriter() *FoldedWriter {
	return &FoldedWriter{}
}

// Write writes the flame graph in folded format.
func (w *FoldedWriter) Write(fg *FlameGraph, out io.Writer) error {
	bw := bufio.NewWriter(out)
	for _, child := range fg.Root.Children {
		if err := writeFolded(bw, child, nil); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeFolded(out *bufio.Writer, node *Node, stack []string) error {
	// ';' separates frames in the folded format.
	stack = append(stack, strings.ReplaceAll(node.Name, ";", ":"))
	if node.Self > 0 {
		if _, err := fmt.Fprintf(out, "%s %d\n", strings.Join(stack, ";"), node.Self); err != nil {
			return err
		}
	}
	for _, child := range node.Children {
		if err := writeFolded(out, child, stack); err != nil {
			return err
		}
	}
	return nil
}
