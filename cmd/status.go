package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terrascope/lulc/internal/ingest"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ingestion ledgers and cataloged datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := appPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := printLedger(ctx, "Raster imports", ingest.NewRasterLedger(pool)); err != nil {
			return err
		}
		if err := printLedger(ctx, "Shapefile imports", ingest.NewShapefileLedger(pool)); err != nil {
			return err
		}

		years, err := appCatalog(pool).Years(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nDataset years: %v\n", years)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printLedger(ctx context.Context, title string, ledger *ingest.Ledger) error {
	records, err := ledger.List(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s (%d)\n", title, len(records))
	if len(records) == 0 {
		return nil
	}
	fmt.Printf("%-6s %-40s %-30s %-12s %s\n", "ID", "Filename", "Table", "Checksum", "Imported At")
	for _, rec := range records {
		sum := rec.Checksum
		if len(sum) > 12 {
			sum = sum[:12]
		}
		fmt.Printf("%-6d %-40s %-30s %-12s %s\n",
			rec.ID, rec.Filename, rec.TableName, sum, rec.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
