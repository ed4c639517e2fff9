package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heap-dump/internal/flamegraph"
	"github.com/heap-dump/internal/formatter"
	"github.com/heap-dump/internal/report"
	"github.com/heap-dump/internal/storage"
	"github.com/heap-dump/pkg/filter"
	"github.com/heap-dump/pkg/heapdump"
	"github.com/heap-dump/pkg/model"
)

var (
	// Inspect command flags
	inspectFile   bool
	inspectTop    int
	inspectDepth  int
	inspectFolded string
	inspectApps   []string
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Summarize a stored heap dump report",
	Long: `Load a report from the configured storage (or a local file with --file),
check that its sizes roll up and print the largest contributors.

Compression and format are detected from the content.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectFile, "file", false, "Treat the argument as a local file path")
	inspectCmd.Flags().IntVarP(&inspectTop, "top", "n", 0, "Number of largest contributors to print")
	inspectCmd.Flags().IntVar(&inspectDepth, "depth", 0, "Tree depth the contributors are taken from")
	inspectCmd.Flags().StringVar(&inspectFolded, "folded", "", "Write a folded flame graph to this file")
	inspectCmd.Flags().StringSliceVar(&inspectApps, "app", nil, "Packages counted as application code in the category table")
}

func runInspect(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	ctx := cmd.Context()

	res, err := loadInspected(ctx, args[0])
	if err != nil {
		return err
	}
	if res.Root == nil {
		return fmt.Errorf("report %s has no tree", args[0])
	}
	if err := report.Verify(res.Root); err != nil {
		log.Warn("Report is inconsistent: %v", err)
	}

	top, depth := cfg.Output.Top, cfg.Output.TopDepth
	if inspectTop > 0 {
		top = inspectTop
	}
	if inspectDepth > 0 {
		depth = inspectDepth
	}
	f := formatter.NewDumpFormatter(formatter.Options{
		Top:        top,
		Depth:      depth,
		Categories: filter.NewTypeFilter(append(inspectApps, cfg.Dump.Include...), nil),
	})
	f.Format(res, log)
	if err := f.WriteTable(cmd.OutOrStdout(), res); err != nil {
		return err
	}

	if inspectFolded != "" {
		return writeFolded(ctx, res, inspectFolded)
	}
	return nil
}

func loadInspected(ctx context.Context, arg string) (*model.DumpResult, error) {
	if inspectFile {
		f, err := os.Open(arg)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return heapdump.ReadReport(f)
	}

	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	return heapdump.LoadReport(ctx, store, arg)
}

func writeFolded(ctx context.Context, res *model.DumpResult, path string) error {
	fg, err := flamegraph.NewGenerator(flamegraph.DefaultGeneratorOptions()).Generate(ctx, res.Root)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := flamegraph.NewFoldedWriter().Write(fg, out); err != nil {
		out.Close()
		return err
	}
	GetLogger().Info("Folded flame graph written to %s", path)
	return out.Close()
}
