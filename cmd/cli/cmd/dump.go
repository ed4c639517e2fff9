package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heap-dump/internal/formatter"
)

var (
	// Dump command flags
	dumpStrategy    string
	dumpFormat      string
	dumpCompression string
	dumpFlameGraph  bool
	dumpTop         int
	dumpDryRun      bool
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the registered roots of this process",
	Long: `Walk every registered static holder and the configured scene, estimate the
bytes each object retains and write the report tree to storage.

Objects reached more than once are charged to the first path that reaches
them; later paths show a reference node instead. Flags override the
corresponding settings of the configuration file.`,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringVarP(&dumpStrategy, "strategy", "s", "", "Traversal strategy: queued (breadth-first) or eager (depth-first)")
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "", "Report format: xml or json")
	dumpCmd.Flags().StringVar(&dumpCompression, "compression", "", "Report compression: none, gzip or zstd")
	dumpCmd.Flags().BoolVar(&dumpFlameGraph, "flamegraph", false, "Also write a flame graph next to the report")
	dumpCmd.Flags().IntVarP(&dumpTop, "top", "n", 0, "Number of largest contributors to print")
	dumpCmd.Flags().BoolVar(&dumpDryRun, "dry-run", false, "Print the summary without writing a report")
}

func applyDumpFlags(cmd *cobra.Command) error {
	if cmd.Flags().Changed("strategy") {
		cfg.Dump.Strategy = dumpStrategy
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = dumpFormat
	}
	if cmd.Flags().Changed("compression") {
		cfg.Output.Compression = dumpCompression
	}
	if dumpFlameGraph {
		cfg.Output.FlameGraph = true
	}
	if dumpTop > 0 {
		cfg.Output.Top = dumpTop
	}
	return cfg.Validate()
}

func runDump(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	if err := applyDumpFlags(cmd); err != nil {
		return err
	}

	d, closeFn, err := newDumper(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	f := formatter.NewDumpFormatter(formatter.Options{
		Top:        cfg.Output.Top,
		Depth:      cfg.Output.TopDepth,
		Categories: d.TypeFilter(),
	})

	if dumpDryRun {
		res, err := d.Dump(cmd.Context())
		if err != nil {
			return err
		}
		f.Format(res, log)
		return f.WriteTable(cmd.OutOrStdout(), res)
	}

	rec, err := d.DumpToStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}

	log.Info("")
	log.Info("=== Dump Complete ===")
	log.Info("ID:          %s", rec.ID)
	log.Info("Total Size:  %s", formatter.FormatBytes(rec.Stats.TotalSize))
	log.Info("Warnings:    %d", rec.Stats.Warnings)
	log.Info("Report:      %s", rec.StorageKey)
	if rec.URL != "" && rec.URL != rec.StorageKey {
		log.Info("URL:         %s", rec.URL)
	}
	return nil
}
