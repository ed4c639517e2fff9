package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heap-dump/internal/formatter"
	"github.com/heap-dump/internal/repository"
	"github.com/heap-dump/internal/storage"
)

var (
	// History command flags
	historyScene  string
	historyLimit  int
	historyDelete string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded heap dumps",
	Long: `List the most recent dumps, newest first.

With a history database configured this shows every recorded run, failed
ones included. Without one it lists the reports found in storage.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyScene, "scene", "", "Only list dumps of this scene")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", repository.DefaultListLimit, "Maximum number of entries")
	historyCmd.Flags().StringVar(&historyDelete, "delete", "", "Delete the record with this ID and its report")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := GetLogger()

	repos, err := openHistory(ctx)
	if err != nil {
		return err
	}
	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return err
	}

	if repos == nil {
		if historyDelete != "" {
			return fmt.Errorf("--delete needs a history database")
		}
		prefix := ""
		if historyScene != "" {
			prefix = historyScene + "/"
		}
		objs, err := store.List(ctx, prefix)
		if err != nil {
			return err
		}
		if historyLimit > 0 && len(objs) > historyLimit {
			objs = objs[:historyLimit]
		}
		formatter.WriteObjects(cmd.OutOrStdout(), objs)
		return nil
	}
	defer repos.Close()

	if historyDelete != "" {
		rec, err := repos.Dumps.GetDump(ctx, historyDelete)
		if err != nil {
			return err
		}
		if rec.StorageKey != "" {
			if err := store.Delete(ctx, rec.StorageKey); err != nil {
				return err
			}
		}
		if err := repos.Dumps.DeleteDump(ctx, rec.ID); err != nil {
			return err
		}
		log.Info("Deleted dump %s", rec.ID)
		return nil
	}

	recs, err := repos.Dumps.ListDumps(ctx, historyScene, historyLimit)
	if err != nil {
		return err
	}
	formatter.WriteHistory(cmd.OutOrStdout(), recs)
	return nil
}
