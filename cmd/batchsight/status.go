package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arvense/batchsight/internal/spc"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Deviation KPIs and per-indicator control limits",
		Long: `Summarizes the quality-system state: open and overdue deviation counts,
plus mean ± 3σ control limits and out-of-control batches for each indicator
across the stored batch series.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := cmd.Context()

			open, err := store.ListOpen(ctx)
			if err != nil {
				return err
			}
			now := time.Now()
			overdue := 0
			for i := range open {
				if open[i].Overdue(now) {
					overdue++
				}
			}
			fmt.Printf("Open deviations: %d\n", len(open))
			if overdue > 0 {
				color.New(color.FgRed).Printf("Overdue (>30d): %d\n", overdue)
			} else {
				fmt.Printf("Overdue (>30d): 0\n")
			}

			observations, err := store.ListObservations(ctx)
			if err != nil {
				return err
			}
			if len(observations) < 2 {
				fmt.Println("\nnot enough batches for control limits")
				return nil
			}

			series := make(map[string][]float64)
			for _, obs := range observations {
				for name, value := range obs.Indicators {
					series[name] = append(series[name], value)
				}
			}

			fmt.Printf("\n%-28s %10s %10s %10s %5s\n", "Indicator", "Mean", "LCL", "UCL", "OOC")
			for _, name := range sortedKeys(series) {
				fmt.Println(controlRow(name, series[name]))
			}
			return nil
		},
	}
}

// controlRow formats one indicator's control-limit line. Indicators with
// too few batches for limits still get a row rather than vanishing from
// the table.
func controlRow(name string, values []float64) string {
	limits, err := spc.Limits(values)
	if err != nil {
		return fmt.Sprintf("%-28s %38s", name, "needs at least 2 batches")
	}
	ooc := len(limits.OutOfControl(values))
	return fmt.Sprintf("%-28s %10.3f %10.3f %10.3f %5d", name, limits.Mean, limits.LCL, limits.UCL, ooc)
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
