// Package spc provides the statistical-process-control calculations behind
// the batch trend charts: individuals control limits (mean ± 3σ) with
// out-of-control flagging, and Ppk process-capability against specification
// limits. All functions are pure and operate on plain value series.
package spc

import (
	"errors"
	"math"
)

// ControlLimits are the center line and three-sigma limits for an
// individuals chart of one indicator across a batch series.
type ControlLimits struct {
	Mean float64
	UCL  float64
	LCL  float64
}

// Limits computes mean ± 3σ control limits from a value series using the
// sample standard deviation (Bessel correction, divide by n-1).
func Limits(values []float64) (ControlLimits, error) {
	if len(values) < 2 {
		return ControlLimits{}, errors.New("control limits need at least 2 values")
	}
	mean, sigma := meanStdDev(values)
	return ControlLimits{
		Mean: mean,
		UCL:  mean + 3*sigma,
		LCL:  mean - 3*sigma,
	}, nil
}

// OutOfControl returns the indices of values outside the limits.
func (l ControlLimits) OutOfControl(values []float64) []int {
	var out []int
	for i, v := range values {
		if v > l.UCL || v < l.LCL {
			out = append(out, i)
		}
	}
	return out
}

// Ppk computes the process performance index against lower and upper
// specification limits: min((USL−mean)/3σ, (mean−LSL)/3σ). A zero-variance
// series returns +Inf, matching the convention that a perfectly repeatable
// process inside spec is unboundedly capable.
func Ppk(values []float64, lsl, usl float64) (float64, error) {
	if len(values) < 2 {
		return 0, errors.New("ppk needs at least 2 values")
	}
	if usl <= lsl {
		return 0, errors.New("usl must exceed lsl")
	}
	mean, sigma := meanStdDev(values)
	if sigma == 0 {
		return math.Inf(1), nil
	}
	ppu := (usl - mean) / (3 * sigma)
	ppl := (mean - lsl) / (3 * sigma)
	return math.Min(ppu, ppl), nil
}

func meanStdDev(values []float64) (mean, sigma float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return mean, math.Sqrt(variance)
}
