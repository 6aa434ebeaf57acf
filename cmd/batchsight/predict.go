package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arvense/batchsight/internal/forest"
	"github.com/arvense/batchsight/internal/models"
)

func predictCmd() *cobra.Command {
	var categorical []string
	var numeric []string
	var missing []string
	var explain bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Suggest the most probable root cause for a new deviation",
		Long: `Loads the persisted model and ranks root-cause hypotheses for a deviation
described by its features. Features the model was trained on must all be
supplied; values not known yet are given explicitly via --missing.

Example:
  batchsight predict \
    --cat unit_operation=Chromatography \
    --cat equipment_type=IEX \
    --cat new_raw_material_lot=yes \
    --num batch_age_days=12 \
    --missing operator_shift \
    --explain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()

			model, err := forest.LoadModel(cfg.Classifier.ModelPath)
			if err != nil {
				return fmt.Errorf("failed to load model (run train first): %w", err)
			}

			features, err := parseFeatures(categorical, numeric, missing)
			if err != nil {
				return err
			}

			if explain {
				explanation, err := model.Explain(features)
				if err != nil {
					return err
				}
				printPrediction(explanation.Prediction)
				fmt.Println("\nWhy (feature contributions to the predicted cause):")
				for _, c := range explanation.Contributions {
					fmt.Printf("  %-28s %+.4f\n", c.Feature, c.Weight)
				}
				return nil
			}

			prediction, err := model.Predict(features)
			if err != nil {
				return err
			}
			printPrediction(prediction)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&categorical, "cat", nil, "categorical feature as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&numeric, "num", nil, "numeric feature as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&missing, "missing", nil, "feature with no known value yet (repeatable)")
	cmd.Flags().BoolVar(&explain, "explain", false, "show per-feature attribution")
	return cmd
}

func parseFeatures(categorical, numeric, missing []string) (map[string]models.FeatureValue, error) {
	features := make(map[string]models.FeatureValue)

	for _, pair := range categorical {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --cat %q, expected name=value", pair)
		}
		features[name] = models.Category(value)
	}
	for _, pair := range numeric {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --num %q, expected name=value", pair)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric value in --num %q: %w", pair, err)
		}
		features[name] = models.Number(value)
	}
	for _, name := range missing {
		features[name] = models.MissingValue()
	}
	return features, nil
}

func printPrediction(p models.CausePrediction) {
	fmt.Println("Ranked root-cause hypotheses:")
	for i, cause := range p.Causes {
		line := fmt.Sprintf("%2d. %-32s %5.1f%%", i+1, cause.Cause, cause.Confidence*100)
		if i == 0 {
			color.New(color.Bold).Println(line)
		} else {
			fmt.Println(line)
		}
	}
}
