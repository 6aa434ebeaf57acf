package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// OverdueAfter is how long a deviation may stay open before it counts as
// overdue in KPI summaries.
const OverdueAfter = 30 * 24 * time.Hour

// FeatureValue is one categorical or numeric feature of a deviation record.
// A missing value is recorded explicitly rather than dropping the feature
// from the record, so schema checks can tell "absent" from "unknown".
type FeatureValue struct {
	Categorical string  `json:"categorical,omitempty"`
	Numeric     float64 `json:"numeric,omitempty"`
	IsNumeric   bool    `json:"is_numeric"`
	Missing     bool    `json:"missing"`
}

// Category returns a categorical feature value.
func Category(v string) FeatureValue {
	return FeatureValue{Categorical: v}
}

// Number returns a numeric feature value.
func Number(v float64) FeatureValue {
	return FeatureValue{Numeric: v, IsNumeric: true}
}

// MissingValue returns an explicitly missing feature value.
func MissingValue() FeatureValue {
	return FeatureValue{Missing: true}
}

// Validate checks that the feature value is well formed.
func (f FeatureValue) Validate() error {
	if f.Missing {
		return nil
	}
	if f.IsNumeric {
		if math.IsNaN(f.Numeric) || math.IsInf(f.Numeric, 0) {
			return errors.New("numeric feature must be finite")
		}
		return nil
	}
	if f.Categorical == "" {
		return errors.New("categorical feature must not be empty")
	}
	return nil
}

// DeviationRecord is one deviation investigation at an external
// manufacturing site. Records with a confirmed root cause (closed
// investigations) form the training corpus for the classifier and the
// input to the Pareto aggregator; open records only feed KPI summaries.
type DeviationRecord struct {
	ID          string                  `json:"id"`
	Site        string                  `json:"site"`
	Product     string                  `json:"product"`
	Description string                  `json:"description"`
	Features    map[string]FeatureValue `json:"features"`
	RootCause   string                  `json:"root_cause"` // empty until the investigation closes
	OpenedAt    time.Time               `json:"opened_at"`
	ClosedAt    time.Time               `json:"closed_at"` // zero while open
}

// Confirmed reports whether the record carries a confirmed root cause.
func (d *DeviationRecord) Confirmed() bool {
	return d.RootCause != ""
}

// Age returns how long the deviation has been (or was) open.
func (d *DeviationRecord) Age(now time.Time) time.Duration {
	if !d.ClosedAt.IsZero() {
		return d.ClosedAt.Sub(d.OpenedAt)
	}
	return now.Sub(d.OpenedAt)
}

// Overdue reports whether an open deviation has exceeded the closure window.
func (d *DeviationRecord) Overdue(now time.Time) bool {
	return d.ClosedAt.IsZero() && d.Age(now) > OverdueAfter
}

// Validate checks that all deviation record fields are valid.
func (d *DeviationRecord) Validate() error {
	if d.ID == "" {
		return errors.New("deviation ID must not be empty")
	}
	if d.OpenedAt.IsZero() {
		return errors.New("opened at must be set")
	}
	if !d.ClosedAt.IsZero() && d.ClosedAt.Before(d.OpenedAt) {
		return errors.New("closed at must not precede opened at")
	}
	for name, value := range d.Features {
		if name == "" {
			return errors.New("feature name must not be empty")
		}
		if err := value.Validate(); err != nil {
			return fmt.Errorf("feature %q: %w", name, err)
		}
	}
	return nil
}
