package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrascope/lulc/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lulc",
	Short: "Land cover dataset ingestion and analytics for PostGIS",
	Long: `Ingests yearly land-use/land-cover rasters and shapefiles into PostGIS
with content-addressed deduplication, then answers classification analytics:
pixel histograms, exact and estimated class areas, change between years, and
vectorized class polygon overlays.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
