// Package storage persists the historical corpus batchsight works from:
// batch observations and deviation records, in a single SQLite database.
// Indicator and feature maps are stored as JSON columns; timestamps as
// RFC 3339 text. The store is safe for concurrent use via database/sql's
// connection pool.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arvense/batchsight/internal/models"
)

// Store wraps the SQLite database holding observations and deviations.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	batch_id   TEXT PRIMARY KEY,
	sequence   INTEGER NOT NULL,
	timestamp  TEXT NOT NULL,
	indicators TEXT NOT NULL,
	scored_at  TEXT
);
CREATE INDEX IF NOT EXISTS idx_observations_sequence ON observations(sequence);

CREATE TABLE IF NOT EXISTS deviations (
	id          TEXT PRIMARY KEY,
	site        TEXT NOT NULL DEFAULT '',
	product     TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	features    TEXT NOT NULL,
	root_cause  TEXT NOT NULL DEFAULT '',
	opened_at   TEXT NOT NULL,
	closed_at   TEXT
);
CREATE INDEX IF NOT EXISTS idx_deviations_root_cause ON deviations(root_cause);
`

// New opens (or creates) the database at dbPath and applies the schema.
// Pass ":memory:" for an ephemeral store in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddObservation stores one batch observation. Observations are immutable;
// inserting a duplicate batch ID is an error.
func (s *Store) AddObservation(ctx context.Context, obs *models.BatchObservation) error {
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("invalid observation: %w", err)
	}
	indicators, err := json.Marshal(obs.Indicators)
	if err != nil {
		return fmt.Errorf("failed to marshal indicators: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO observations (batch_id, sequence, timestamp, indicators) VALUES (?, ?, ?, ?)",
		obs.BatchID, obs.Sequence, obs.Timestamp.Format(time.RFC3339Nano), string(indicators),
	)
	if err != nil {
		return fmt.Errorf("failed to insert observation: %w", err)
	}
	return nil
}

// GetObservation retrieves one observation by batch ID.
func (s *Store) GetObservation(ctx context.Context, batchID string) (*models.BatchObservation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT batch_id, sequence, timestamp, indicators FROM observations WHERE batch_id = ?",
		batchID,
	)
	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("observation not found: %s", batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}
	return obs, nil
}

// ListObservations returns all observations ordered by production sequence.
func (s *Store) ListObservations(ctx context.Context) ([]models.BatchObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT batch_id, sequence, timestamp, indicators FROM observations ORDER BY sequence ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()
	return collectObservations(rows)
}

// ListUnscored returns observations that have not been scored yet, ordered
// by production sequence. The watch loop drains this.
func (s *Store) ListUnscored(ctx context.Context) ([]models.BatchObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT batch_id, sequence, timestamp, indicators FROM observations WHERE scored_at IS NULL ORDER BY sequence ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unscored observations: %w", err)
	}
	defer rows.Close()
	return collectObservations(rows)
}

// MaxSequence returns the highest production sequence currently stored,
// or 0 for an empty store. Sync uses this as its resume position.
func (s *Store) MaxSequence(ctx context.Context) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sequence), 0) FROM observations",
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read max sequence: %w", err)
	}
	return seq, nil
}

// MarkScored records that an observation has been scored. The score itself
// is not persisted: it is a pure function of the observation and the
// current configuration, so storing it would only let it go stale.
func (s *Store) MarkScored(ctx context.Context, batchID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE observations SET scored_at = ? WHERE batch_id = ?",
		at.Format(time.RFC3339Nano), batchID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark observation scored: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark observation scored: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("observation not found: %s", batchID)
	}
	return nil
}

// AddDeviation stores one deviation record.
func (s *Store) AddDeviation(ctx context.Context, rec *models.DeviationRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid deviation record: %w", err)
	}
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}
	var closedAt any
	if !rec.ClosedAt.IsZero() {
		closedAt = rec.ClosedAt.Format(time.RFC3339Nano)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO deviations (id, site, product, description, features, root_cause, opened_at, closed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Site, rec.Product, rec.Description, string(features),
		rec.RootCause, rec.OpenedAt.Format(time.RFC3339Nano), closedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deviation: %w", err)
	}
	return nil
}

// HasDeviation reports whether a deviation record with this ID exists.
func (s *Store) HasDeviation(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM deviations WHERE id = ?", id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check deviation: %w", err)
	}
	return n > 0, nil
}

// GetDeviation retrieves one deviation record by ID.
func (s *Store) GetDeviation(ctx context.Context, id string) (*models.DeviationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, site, product, description, features, root_cause, opened_at, closed_at FROM deviations WHERE id = ?",
		id,
	)
	rec, err := scanDeviation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("deviation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deviation: %w", err)
	}
	return rec, nil
}

// ListDeviations returns all deviation records, oldest first.
func (s *Store) ListDeviations(ctx context.Context) ([]models.DeviationRecord, error) {
	return s.listDeviations(ctx,
		"SELECT id, site, product, description, features, root_cause, opened_at, closed_at FROM deviations ORDER BY opened_at ASC",
	)
}

// ListConfirmed returns closed records with a confirmed root cause: the
// training corpus and the Pareto input.
func (s *Store) ListConfirmed(ctx context.Context) ([]models.DeviationRecord, error) {
	return s.listDeviations(ctx,
		"SELECT id, site, product, description, features, root_cause, opened_at, closed_at FROM deviations WHERE root_cause != '' ORDER BY opened_at ASC",
	)
}

// ListOpen returns still-open investigations, oldest first.
func (s *Store) ListOpen(ctx context.Context) ([]models.DeviationRecord, error) {
	return s.listDeviations(ctx,
		"SELECT id, site, product, description, features, root_cause, opened_at, closed_at FROM deviations WHERE closed_at IS NULL ORDER BY opened_at ASC",
	)
}

// CloseDeviation records the confirmed root cause of an open investigation
// and closes it. Already-closed records are immutable.
func (s *Store) CloseDeviation(ctx context.Context, id, rootCause string, closedAt time.Time) error {
	if rootCause == "" {
		return fmt.Errorf("root cause must not be empty")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE deviations SET root_cause = ?, closed_at = ? WHERE id = ? AND closed_at IS NULL",
		rootCause, closedAt.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("failed to close deviation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to close deviation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deviation %s not found or already closed", id)
	}
	return nil
}

func (s *Store) listDeviations(ctx context.Context, query string) ([]models.DeviationRecord, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deviations: %w", err)
	}
	defer rows.Close()

	records := make([]models.DeviationRecord, 0)
	for rows.Next() {
		rec, err := scanDeviation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deviation: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list deviations: %w", err)
	}
	return records, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(sc scanner) (*models.BatchObservation, error) {
	var (
		obs        models.BatchObservation
		timestamp  string
		indicators string
	)
	if err := sc.Scan(&obs.BatchID, &obs.Sequence, &timestamp, &indicators); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp for batch %s: %w", obs.BatchID, err)
	}
	obs.Timestamp = ts
	if err := json.Unmarshal([]byte(indicators), &obs.Indicators); err != nil {
		return nil, fmt.Errorf("invalid indicators for batch %s: %w", obs.BatchID, err)
	}
	return &obs, nil
}

func collectObservations(rows *sql.Rows) ([]models.BatchObservation, error) {
	observations := make([]models.BatchObservation, 0)
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, *obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	return observations, nil
}

func scanDeviation(sc scanner) (*models.DeviationRecord, error) {
	var (
		rec      models.DeviationRecord
		features string
		openedAt string
		closedAt sql.NullString
	)
	if err := sc.Scan(&rec.ID, &rec.Site, &rec.Product, &rec.Description, &features, &rec.RootCause, &openedAt, &closedAt); err != nil {
		return nil, err
	}
	opened, err := time.Parse(time.RFC3339Nano, openedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid opened_at for deviation %s: %w", rec.ID, err)
	}
	rec.OpenedAt = opened
	if closedAt.Valid {
		closed, err := time.Parse(time.RFC3339Nano, closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid closed_at for deviation %s: %w", rec.ID, err)
		}
		rec.ClosedAt = closed
	}
	if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
		return nil, fmt.Errorf("invalid features for deviation %s: %w", rec.ID, err)
	}
	return &rec, nil
}
