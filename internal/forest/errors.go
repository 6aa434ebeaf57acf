package forest

import (
	"errors"
	"fmt"
)

// ErrModelNotFitted is returned by Predict and Explain before any
// successful Fit.
var ErrModelNotFitted = errors.New("classifier has not been fitted")

// InsufficientDataError reports a training corpus that cannot support a
// model: fewer than two distinct cause labels, a class below the
// configured per-class floor, or records that carry no features at all.
type InsufficientDataError struct {
	Labels      int    // distinct cause labels present
	Cause       string // offending class, when a class is under the floor
	Count       int
	MinPerClass int
	NoFeatures  bool // set when the corpus yields an empty schema
}

func (e InsufficientDataError) Error() string {
	if e.NoFeatures {
		return "insufficient training data: records carry no features"
	}
	if e.Cause != "" {
		return fmt.Sprintf("insufficient training data: cause %q has %d records, need at least %d",
			e.Cause, e.Count, e.MinPerClass)
	}
	return fmt.Sprintf("insufficient training data: %d distinct cause labels, need at least 2", e.Labels)
}

// SchemaMismatchError reports a feature that is entirely absent from an
// input, as opposed to present-but-missing or carrying an unseen category
// (both of which degrade gracefully instead of failing).
type SchemaMismatchError struct {
	Feature  string
	RecordID string // set when the mismatch was found in a training record
}

func (e SchemaMismatchError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("schema mismatch: record %s lacks feature %q", e.RecordID, e.Feature)
	}
	return fmt.Sprintf("schema mismatch: feature %q is absent from input", e.Feature)
}
