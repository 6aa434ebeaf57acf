package lims

import (
	"context"
	"fmt"

	"github.com/arvense/batchsight/internal/storage"
)

// Stats summarizes one sync pass.
type Stats struct {
	Observations     int // new batch observations stored
	Deviations       int // new deviation records stored
	ClosedDeviations int // local open records closed with an upstream root cause
}

// Sync pulls new records from the LIMS into the store. Observations are
// fetched past the highest locally known sequence; deviations are
// reconciled by ID, and locally open investigations pick up upstream
// closures. The LIMS is the system of record, so sync never pushes.
func Sync(ctx context.Context, client *Client, store *storage.Store) (Stats, error) {
	var stats Stats

	maxSeq, err := store.MaxSequence(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to determine sync position: %w", err)
	}

	observations, err := client.FetchObservations(ctx, maxSeq)
	if err != nil {
		return stats, err
	}
	for i := range observations {
		if err := store.AddObservation(ctx, &observations[i]); err != nil {
			return stats, fmt.Errorf("failed to store batch %s: %w", observations[i].BatchID, err)
		}
		stats.Observations++
	}

	deviations, err := client.FetchDeviations(ctx)
	if err != nil {
		return stats, err
	}
	for i := range deviations {
		rec := &deviations[i]
		known, err := store.HasDeviation(ctx, rec.ID)
		if err != nil {
			return stats, fmt.Errorf("failed to check deviation %s: %w", rec.ID, err)
		}
		if !known {
			if err := store.AddDeviation(ctx, rec); err != nil {
				return stats, fmt.Errorf("failed to store deviation %s: %w", rec.ID, err)
			}
			stats.Deviations++
			continue
		}
		if !rec.Confirmed() {
			continue
		}
		local, err := store.GetDeviation(ctx, rec.ID)
		if err != nil {
			return stats, fmt.Errorf("failed to load deviation %s: %w", rec.ID, err)
		}
		if local.Confirmed() {
			continue
		}
		if err := store.CloseDeviation(ctx, rec.ID, rec.RootCause, rec.ClosedAt); err != nil {
			return stats, fmt.Errorf("failed to close deviation %s: %w", rec.ID, err)
		}
		stats.ClosedDeviations++
	}

	return stats, nil
}
