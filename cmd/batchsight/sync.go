package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arvense/batchsight/internal/lims"
	"github.com/arvense/batchsight/internal/logger"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull new batches and deviations from the LIMS",
		Long: `Fetches batch observations and deviation records from the configured
LIMS export API and reconciles them into the local store. Observations are
resumed past the highest known production sequence; deviations pick up
upstream root-cause closures.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()

			if !cfg.LIMS.Enabled() {
				return fmt.Errorf("lims.base_url is not configured")
			}

			client := lims.NewClient(cfg.LIMS.BaseURL, cfg.LIMS.Timeout)
			stats, err := lims.Sync(cmd.Context(), client, store)
			if err != nil {
				return err
			}

			logger.Info("Sync complete: %d observations, %d deviations, %d closures",
				stats.Observations, stats.Deviations, stats.ClosedDeviations)
			fmt.Printf("Synced %d new observation(s), %d new deviation(s), %d closure(s)\n",
				stats.Observations, stats.Deviations, stats.ClosedDeviations)
			return nil
		},
	}
}
