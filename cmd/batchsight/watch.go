package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arvense/batchsight/internal/config"
	"github.com/arvense/batchsight/internal/lims"
	"github.com/arvense/batchsight/internal/logger"
	"github.com/arvense/batchsight/internal/models"
	"github.com/arvense/batchsight/internal/notify"
	"github.com/arvense/batchsight/internal/scoring"
	"github.com/arvense/batchsight/internal/storage"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Score incoming batches continuously and alert on breaches",
		Long: `Polls for unscored batch observations, scores each one, and dispatches
a Telegram alert when any batch classifies at alert or action. When a LIMS
endpoint is configured, each cycle pulls new records first. Runs until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := scoring.New(cfg.EngineConfig())
			if err != nil {
				return err
			}

			var ingest *lims.Client
			if cfg.LIMS.Enabled() {
				ingest = lims.NewClient(cfg.LIMS.BaseURL, cfg.LIMS.Timeout)
				logger.Info("LIMS ingestion enabled (%s)", cfg.LIMS.BaseURL)
			}

			var notifier *notify.Client
			if cfg.Notify.Enabled {
				notifier, err = notify.NewClient(cfg.Notify.BotToken, cfg.Notify.ChatID,
					cfg.Notify.MaxRetries, cfg.Notify.RetryDelayBase)
				if err != nil {
					return err
				}
				logger.Info("Telegram alerts enabled")
			} else {
				logger.Debug("Telegram alerts disabled")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				logger.Info("Shutdown signal received, stopping watch loop")
				cancel()
			}()

			logger.Info("Watching for unscored batches (interval: %v, alert: %.2f, action: %.2f)",
				cfg.Watch.PollInterval, cfg.Scoring.AlertThreshold, cfg.Scoring.ActionThreshold)

			ticker := time.NewTicker(cfg.Watch.PollInterval)
			defer ticker.Stop()

			// Score whatever is already pending before the first tick.
			runWatchCycle(ctx, cfg, store, engine, ingest, notifier)

			for {
				select {
				case <-ctx.Done():
					logger.Info("Watch loop stopped")
					return nil
				case <-ticker.C:
					runWatchCycle(ctx, cfg, store, engine, ingest, notifier)
				}
			}
		},
	}
}

func runWatchCycle(ctx context.Context, cfg *config.Config, store *storage.Store, engine *scoring.Engine, ingest *lims.Client, notifier *notify.Client) {
	if ingest != nil {
		stats, err := lims.Sync(ctx, ingest, store)
		if err != nil {
			// Score whatever is already local; the next cycle retries the pull.
			logger.Warn("LIMS sync failed: %v", err)
		} else if stats.Observations > 0 || stats.Deviations > 0 || stats.ClosedDeviations > 0 {
			logger.Info("Synced %d observation(s), %d deviation(s), %d closure(s)",
				stats.Observations, stats.Deviations, stats.ClosedDeviations)
		}
	}

	observations, err := store.ListUnscored(ctx)
	if err != nil {
		logger.Error("Failed to list unscored batches: %v", err)
		if notifier != nil {
			if sendErr := notifier.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return
	}
	if len(observations) == 0 {
		logger.Debug("No unscored batches")
		return
	}

	var breaches []models.RiskScore
	for _, obs := range observations {
		score, err := engine.Score(obs)
		if err != nil {
			// Incomplete observations stay unscored until their data arrives;
			// scoring them with defaults would fabricate a result.
			logger.Warn("Skipping batch %s: %v", obs.BatchID, err)
			continue
		}
		logger.Info("Batch %s scored %.3f (%s)", score.BatchID, score.Score, score.Classification)
		if err := store.MarkScored(ctx, obs.BatchID, score.ScoredAt); err != nil {
			logger.Error("Failed to mark batch %s scored: %v", obs.BatchID, err)
			continue
		}
		if score.Classification != models.ClassificationNormal {
			breaches = append(breaches, score)
		}
	}

	if len(breaches) > 0 && notifier != nil {
		if err := notifier.SendScores(breaches, cfg.Scoring.AlertThreshold, cfg.Scoring.ActionThreshold); err != nil {
			logger.Warn("Failed to send alert notification: %v", err)
		}
	}
}
