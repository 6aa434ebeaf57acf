package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arvense/batchsight/internal/forest"
	"github.com/arvense/batchsight/internal/logger"
)

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Fit the root-cause classifier on closed deviations",
		Long: `Trains the tree ensemble on every closed deviation record and persists the
fitted model (training schema included) to classifier.model_path, so predict
can serve it without retraining.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListConfirmed(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("Training on %d confirmed deviation records (seed %d, %d trees)",
				len(records), cfg.Classifier.Seed, cfg.Classifier.Trees)

			model, err := forest.Train(records, cfg.ForestConfig())
			if err != nil {
				return err
			}
			if err := forest.SaveModel(model, cfg.Classifier.ModelPath); err != nil {
				return err
			}

			fmt.Printf("model trained on %d records, %d causes, saved to %s\n",
				len(records), len(model.Schema.Labels), cfg.Classifier.ModelPath)
			fmt.Println("\nFeature importances:")
			for _, spec := range model.Schema.Features {
				fmt.Printf("  %-28s %.4f\n", spec.Name, model.Importances[spec.Name])
			}
			return nil
		},
	}
}
