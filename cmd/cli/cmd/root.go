package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heap-dump/internal/repository"
	"github.com/heap-dump/pkg/config"
	"github.com/heap-dump/pkg/heapdump"
	"github.com/heap-dump/pkg/roots"
	"github.com/heap-dump/pkg/telemetry"
	"github.com/heap-dump/pkg/utils"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger utils.Logger

	closeLogger       func() error
	shutdownTelemetry telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "heap-dump",
	Short: "Size-annotated heap dumps of a running Go process",
	Long: `heap-dump walks the object graph reachable from registered static holders
and scene containers and writes a report tree where every node carries the
bytes it retains.

Reports are written as XML or JSON, optionally compressed, to local disk or
COS object storage. Every dump can be recorded in a history database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			level = utils.LevelDebug
		}
		if cfg.Log.File != "" {
			fl, err := utils.NewFileLogger(level, cfg.Log.File, cfg.Log.Rotate)
			if err != nil {
				return err
			}
			logger, closeLogger = fl, fl.Close
		} else {
			logger = utils.NewDefaultLogger(level, os.Stderr)
		}
		utils.SetGlobalLogger(logger)

		shutdownTelemetry, err = telemetry.Init(cmd.Context())
		if err != nil {
			logger.Warn("Telemetry disabled: %v", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdownTelemetry != nil {
			if err := shutdownTelemetry(context.Background()); err != nil {
				logger.Warn("Failed to flush telemetry: %v", err)
			}
		}
		if closeLogger != nil {
			return closeLogger()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default ./heap-dump.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	binName := BinName()
	rootCmd.Example = `  # Dump this process's registered roots to ./heapdumps
  ` + binName + ` dump

  # Depth-first, gzip-compressed JSON with a flame graph
  ` + binName + ` dump --strategy eager --format json --compression gzip --flamegraph

  # Summarize a stored report
  ` + binName + ` inspect none/heapdump-none-20260301T120000Z.xml.gz

  # List recorded dumps
  ` + binName + ` history -n 20`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

// registerSelf exposes the CLI's own state as static roots so a dump of this
// process has something to walk.
func registerSelf() {
	reg := roots.Default()
	if reg.Len() > 0 {
		return
	}
	_ = reg.Var("heap-dump/cmd", "CLI", "Config", &cfg)
	_ = reg.Var("heap-dump/cmd", "CLI", "Version", &Version)
}

// openHistory connects to the history database, or returns nil when none
// is configured.
func openHistory(ctx context.Context) (*repository.Repositories, error) {
	if !cfg.Database.Enabled() {
		return nil, nil
	}
	logger.Debug("Connecting to database (%s)...", cfg.Database.Type)
	repos, err := repository.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return repos, nil
}

// newDumper wires a Dumper from the loaded configuration. The returned
// close function releases the history database.
func newDumper(ctx context.Context) (*heapdump.Dumper, func(), error) {
	registerSelf()

	repos, err := openHistory(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := heapdump.Options{Config: cfg, Logger: logger}
	closeFn := func() {}
	if repos != nil {
		opts.History = repos.Dumps
		closeFn = func() {
			if err := repos.Close(); err != nil {
				logger.Warn("Failed to close database: %v", err)
			}
		}
	}

	d, err := heapdump.New(opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return d, closeFn, nil
}
