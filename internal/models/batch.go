// Package models defines the core data types shared across batchsight:
// in-process batch observations, derived risk scores, closed deviation
// records, cause predictions, and Pareto rows.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Classification buckets a risk score against the configured limits.
type Classification string

const (
	// ClassificationNormal means the score is below the alert limit.
	ClassificationNormal Classification = "normal"
	// ClassificationAlert means alert <= score < action.
	ClassificationAlert Classification = "alert"
	// ClassificationAction means the score is at or above the action limit.
	ClassificationAction Classification = "action"
)

// BatchObservation is one manufacturing batch's in-process measurements.
// Observations are immutable once created; scoring derives from them but
// never mutates them.
type BatchObservation struct {
	BatchID    string             `json:"batch_id"`
	Sequence   int                `json:"sequence"` // production order, x-axis for trend display
	Timestamp  time.Time          `json:"timestamp"`
	Indicators map[string]float64 `json:"indicators"`
}

// Validate checks that all observation fields are valid.
func (b *BatchObservation) Validate() error {
	if b.BatchID == "" {
		return errors.New("batch ID must not be empty")
	}
	if b.Sequence < 0 {
		return errors.New("sequence must not be negative")
	}
	if len(b.Indicators) == 0 {
		return errors.New("observation must carry at least one indicator")
	}
	for name, value := range b.Indicators {
		if name == "" {
			return errors.New("indicator name must not be empty")
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("indicator %q must be a finite number", name)
		}
	}
	return nil
}

// RiskScore is the composite deviation risk score derived from one
// observation. It is a pure function of the observation and the current
// weights and thresholds, never persisted independently of its source.
type RiskScore struct {
	BatchID        string             `json:"batch_id"`
	Score          float64            `json:"score"`
	Classification Classification     `json:"classification"`
	Contributions  map[string]float64 `json:"contributions"` // per-indicator weighted term, for audit
	ScoredAt       time.Time          `json:"scored_at"`
}

// Validate checks that all risk score fields are valid.
func (r *RiskScore) Validate() error {
	if r.BatchID == "" {
		return errors.New("batch ID must not be empty")
	}
	if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
		return errors.New("score must be a finite number")
	}
	switch r.Classification {
	case ClassificationNormal, ClassificationAlert, ClassificationAction:
	default:
		return fmt.Errorf("unknown classification %q", r.Classification)
	}
	// Contributions must reconstruct the score so every term stays inspectable.
	var sum float64
	for _, c := range r.Contributions {
		sum += c
	}
	if len(r.Contributions) > 0 && math.Abs(sum-r.Score) > 1e-9 {
		return errors.New("contributions must sum to the score")
	}
	return nil
}
