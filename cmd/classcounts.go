package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var classCountsCmd = &cobra.Command{
	Use:   "class-counts <year>",
	Short: "Per-class pixel histogram for a dataset year",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := appPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		result, err := appEngine(pool).ClassCounts(ctx, args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("Year %s (%s): %d pixels total\n\n", result.Year, result.Table, result.TotalPixels)
		fmt.Printf("%-4s %-20s %14s %10s\n", "Code", "Class", "Pixels", "Share %")
		for _, c := range result.Classes {
			fmt.Printf("%-4d %-20s %14d %10.2f\n", c.Code, c.Label, c.PixelCount, c.Percentage)
		}
		return nil
	},
}

func init() {
	classCountsCmd.Flags().Bool("json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(classCountsCmd)
}
