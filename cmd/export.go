package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [year...]",
	Short: "Export class polygons to GeoJSON files",
	Long: `Writes one feature collection per year into the export directory, using
the coarser export tolerance. The no-data class is omitted. With no years
given, every cataloged year is exported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := appPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		dir, _ := cmd.Flags().GetString("dir")

		written, err := appOverlay(pool).Export(ctx, dir, args)
		if err != nil {
			return err
		}

		for _, path := range written {
			fmt.Println(path)
		}
		fmt.Printf("exported %d file(s)\n", len(written))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("dir", "", "output directory (default: from config)")
	rootCmd.AddCommand(exportCmd)
}
