package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// RankedCause is one (cause, confidence) pair of a prediction.
type RankedCause struct {
	Cause      string  `json:"cause"`
	Confidence float64 `json:"confidence"`
}

// CausePrediction is the classifier's output for one open deviation:
// a probability distribution over all causes observed in training, ordered
// by descending confidence. Predictions are ephemeral and never persisted.
type CausePrediction struct {
	ID          string        `json:"id"`
	Causes      []RankedCause `json:"causes"`
	PredictedAt time.Time     `json:"predicted_at"`
}

// Top returns the highest-confidence cause, or false when the prediction
// is empty.
func (p *CausePrediction) Top() (RankedCause, bool) {
	if len(p.Causes) == 0 {
		return RankedCause{}, false
	}
	return p.Causes[0], true
}

// Validate checks that the prediction is a well-formed distribution:
// confidences in [0, 1] summing to 1, ordered descending.
func (p *CausePrediction) Validate() error {
	if p.ID == "" {
		return errors.New("prediction ID must not be empty")
	}
	if len(p.Causes) == 0 {
		return errors.New("prediction must rank at least one cause")
	}
	var sum float64
	for i, c := range p.Causes {
		if c.Cause == "" {
			return errors.New("cause label must not be empty")
		}
		if c.Confidence < 0.0 || c.Confidence > 1.0 {
			return fmt.Errorf("confidence for %q must be between 0.0 and 1.0", c.Cause)
		}
		if i > 0 && c.Confidence > p.Causes[i-1].Confidence {
			return errors.New("causes must be ordered by descending confidence")
		}
		sum += c.Confidence
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("confidences must sum to 1.0, got %f", sum)
	}
	return nil
}
