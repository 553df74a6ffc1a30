package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terrascope/lulc/internal/geojson"
)

var overlayCmd = &cobra.Command{
	Use:   "overlay <year>",
	Short: "Materialize class polygons for a year and print them as GeoJSON",
	Long: `Ensures the per-year class polygon cache table exists, vectorizing the
raster on first use, then prints the simplified class polygons as one
GeoJSON feature collection. Use "all-years" as the year to read the
consolidated multi-year table instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := appPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		tolerance, _ := cmd.Flags().GetFloat64("tolerance")
		cache := appOverlay(pool)

		var shapes []geojson.ClassShape
		if args[0] == "all-years" {
			shapes, err = cache.AllYears(ctx, tolerance)
		} else {
			shapes, err = cache.Classes(ctx, args[0], tolerance)
		}
		if err != nil {
			return err
		}

		out, err := geojson.Collection(shapes)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	overlayCmd.Flags().Float64("tolerance", 0, "simplification tolerance in degrees (default: from config)")
	rootCmd.AddCommand(overlayCmd)
}
