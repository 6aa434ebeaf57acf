package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arvense/batchsight/internal/models"
	"github.com/arvense/batchsight/internal/scoring"
)

func scoreCmd() *cobra.Command {
	var all bool
	var showTerms bool

	cmd := &cobra.Command{
		Use:   "score [batch-id]",
		Short: "Compute the composite risk score for a batch",
		Long: `Scores one batch (or with --all, every stored batch in production order)
against the configured indicator weights and alert/action limits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("provide a batch ID or --all")
			}

			cfg, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := scoring.New(cfg.EngineConfig())
			if err != nil {
				return fmt.Errorf("invalid scoring configuration: %w", err)
			}

			ctx := cmd.Context()
			var observations []models.BatchObservation
			if all {
				observations, err = store.ListObservations(ctx)
				if err != nil {
					return err
				}
			} else {
				obs, err := store.GetObservation(ctx, args[0])
				if err != nil {
					return err
				}
				observations = []models.BatchObservation{*obs}
			}

			scores, err := engine.ScoreSeries(observations)
			if err != nil {
				return err
			}

			t := engine.Thresholds()
			fmt.Printf("Limits: alert %.2f, action %.2f\n\n", t.Alert, t.Action)
			for _, score := range scores {
				printScore(score, showTerms)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "score every stored batch")
	cmd.Flags().BoolVar(&showTerms, "terms", false, "show per-indicator contributions")
	return cmd
}

func printScore(score models.RiskScore, showTerms bool) {
	fmt.Printf("%-12s %8.3f  %s\n", score.BatchID, score.Score, classificationLabel(score.Classification))
	if !showTerms {
		return
	}
	names := make([]string, 0, len(score.Contributions))
	for name := range score.Contributions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("    %-28s %+9.4f\n", name, score.Contributions[name])
	}
}

func classificationLabel(c models.Classification) string {
	switch c {
	case models.ClassificationAction:
		return color.New(color.FgRed, color.Bold).Sprint("ACTION")
	case models.ClassificationAlert:
		return color.New(color.FgYellow).Sprint("ALERT")
	default:
		return color.New(color.FgGreen).Sprint("normal")
	}
}
