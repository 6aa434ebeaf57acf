package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arvense/batchsight/internal/pareto"
)

func paretoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pareto",
		Short: "Rank historical deviation root causes by frequency",
		Long: `Aggregates closed deviation investigations into a Pareto table: count per
root cause, sorted descending, with the cumulative percentage curve.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListConfirmed(cmd.Context())
			if err != nil {
				return err
			}

			rows := pareto.Aggregate(records)
			if len(rows) == 0 {
				fmt.Println("no confirmed deviations on record")
				return nil
			}

			bold := color.New(color.Bold)
			bold.Printf("%-32s %6s %8s  %s\n", "Root cause", "Count", "Cum. %", "")
			for _, row := range rows {
				bar := strings.Repeat("█", row.Count)
				fmt.Printf("%-32s %6d %7.1f%%  %s\n", row.Cause, row.Count, row.CumulativePercent, bar)
			}
			return nil
		},
	}
}
