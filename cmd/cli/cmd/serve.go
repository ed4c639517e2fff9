package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heap-dump/pkg/heapdump"
)

var (
	// Serve command flags
	serveAddr string
	servePath string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP dump trigger",
	Long: `Start an HTTP server that writes a heap dump of this process on every
POST to the trigger path. Set server.username and server.password to
require basic auth.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Serve on the configured address
  ` + binName + ` serve

  # Trigger a dump
  curl -X POST http://localhost:6061/debug/heapdump`

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&servePath, "path", "", "Trigger path (overrides server.path)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if servePath != "" {
		cfg.Server.Path = servePath
	}

	d, closeFn, err := newDumper(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := heapdump.NewServer(heapdump.NewHandler(d, cfg.Server, log), cfg.Server, log)
	log.Info("POST %s%s to trigger a dump, Ctrl+C to stop", cfg.Server.Addr, cfg.Server.Path)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}
