// Command batchsight is the decision-support CLI for MSAT batch oversight:
// composite risk scoring of in-process batches, Pareto ranking of deviation
// root causes, and training/serving the root-cause classifier.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arvense/batchsight/internal/config"
	"github.com/arvense/batchsight/internal/logger"
	"github.com/arvense/batchsight/internal/storage"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "batchsight",
		Short: "Batch risk scoring and deviation root-cause analysis",
		Long: `batchsight scores in-process batch data against configured alert and
action limits, ranks historical deviation root causes (Pareto), and trains a
tree-ensemble classifier that suggests the most probable root cause for a new
deviation.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to configuration file")

	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(paretoCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads and validates configuration, initializes logging, and opens
// the historical store. Every subcommand starts here.
func setup() (*config.Config, *storage.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return cfg, store, nil
}
