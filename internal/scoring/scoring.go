// Package scoring computes the composite deviation risk score for a batch.
//
// The score is a weighted linear combination of named in-process indicators:
//
//	score = Σ weight_i × (value_i − baseline_i)
//
// over every indicator named in the configuration. The linear form is
// deliberate: each contributing term stays individually inspectable for an
// investigator, which an opaque model cannot offer in a regulated context.
//
// The score is then classified against two configured limits: Action at or
// above the action threshold, Alert between the alert and action thresholds,
// Normal below the alert threshold. Detecting trends across batches (for
// example N consecutive increasing scores) is a downstream policy and is
// not part of this package.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/arvense/batchsight/internal/models"
)

// IndicatorWeight configures one indicator's contribution to the score.
// Baseline is subtracted from the measured value before weighting, so the
// score reflects deviation from expected performance rather than raw
// magnitude.
type IndicatorWeight struct {
	Weight   float64
	Baseline float64
}

// Thresholds holds the alert and action limits for classification.
type Thresholds struct {
	Alert  float64
	Action float64
}

// Config is a validated scoring configuration: named indicator weights plus
// classification thresholds. Weights and limits are deployment-specific
// inputs, never constants baked into the engine.
type Config struct {
	Weights    map[string]IndicatorWeight
	Thresholds Thresholds
}

// InvalidThresholdError reports a threshold pair where action does not
// exceed alert. Such a configuration is rejected outright: it would make
// the Alert band empty or inverted.
type InvalidThresholdError struct {
	Alert  float64
	Action float64
}

func (e InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid thresholds: action (%g) must exceed alert (%g)", e.Action, e.Alert)
}

// MissingIndicatorError reports an observation that lacks a configured
// indicator. Missing indicators are never treated as zero; that would
// systematically under-score incomplete data.
type MissingIndicatorError struct {
	BatchID   string
	Indicator string
}

func (e MissingIndicatorError) Error() string {
	return fmt.Sprintf("batch %s: missing indicator %q", e.BatchID, e.Indicator)
}

// Engine scores batch observations against a fixed configuration. It is
// stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// New validates the configuration and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Weights) == 0 {
		return nil, fmt.Errorf("scoring config must name at least one indicator")
	}
	for name, w := range cfg.Weights {
		if name == "" {
			return nil, fmt.Errorf("indicator name must not be empty")
		}
		if math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
			return nil, fmt.Errorf("weight for %q must be finite", name)
		}
		if math.IsNaN(w.Baseline) || math.IsInf(w.Baseline, 0) {
			return nil, fmt.Errorf("baseline for %q must be finite", name)
		}
	}
	if cfg.Thresholds.Action <= cfg.Thresholds.Alert {
		return nil, InvalidThresholdError{Alert: cfg.Thresholds.Alert, Action: cfg.Thresholds.Action}
	}
	return &Engine{cfg: cfg}, nil
}

// Indicators returns the configured indicator names, sorted for stable
// display order.
func (e *Engine) Indicators() []string {
	names := make([]string, 0, len(e.cfg.Weights))
	for name := range e.cfg.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Thresholds returns the configured classification limits.
func (e *Engine) Thresholds() Thresholds {
	return e.cfg.Thresholds
}

// Score computes the composite risk score for one observation. The
// observation must supply a value for every configured indicator; a missing
// indicator is a MissingIndicatorError, not a zero term.
func (e *Engine) Score(obs models.BatchObservation) (models.RiskScore, error) {
	if err := obs.Validate(); err != nil {
		return models.RiskScore{}, fmt.Errorf("invalid observation: %w", err)
	}

	contributions := make(map[string]float64, len(e.cfg.Weights))
	var total float64
	for _, name := range e.Indicators() {
		value, ok := obs.Indicators[name]
		if !ok {
			return models.RiskScore{}, MissingIndicatorError{BatchID: obs.BatchID, Indicator: name}
		}
		w := e.cfg.Weights[name]
		term := w.Weight * (value - w.Baseline)
		contributions[name] = term
		total += term
	}

	return models.RiskScore{
		BatchID:        obs.BatchID,
		Score:          total,
		Classification: e.classify(total),
		Contributions:  contributions,
		ScoredAt:       time.Now(),
	}, nil
}

// ScoreSeries scores a production-ordered series of observations. Any
// scoring failure aborts the whole series; a partially fabricated trend
// is worse than no trend.
func (e *Engine) ScoreSeries(observations []models.BatchObservation) ([]models.RiskScore, error) {
	scores := make([]models.RiskScore, 0, len(observations))
	for _, obs := range observations {
		score, err := e.Score(obs)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, nil
}

func (e *Engine) classify(score float64) models.Classification {
	switch {
	case score >= e.cfg.Thresholds.Action:
		return models.ClassificationAction
	case score >= e.cfg.Thresholds.Alert:
		return models.ClassificationAlert
	default:
		return models.ClassificationNormal
	}
}
