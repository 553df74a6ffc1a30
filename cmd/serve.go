package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terrascope/lulc/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only analytics API over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := appPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}

		srv := server.New(appEngine(pool), appCatalog(pool), appOverlay(pool), cfg.Server)
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default: from config)")
	rootCmd.AddCommand(serveCmd)
}
