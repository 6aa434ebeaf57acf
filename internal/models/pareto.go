package models

import "errors"

// ParetoRow is one aggregated root-cause bucket: occurrence count plus the
// running cumulative percentage when rows are sorted by descending count.
type ParetoRow struct {
	Cause             string  `json:"cause"`
	Count             int     `json:"count"`
	CumulativePercent float64 `json:"cumulative_percent"`
}

// Validate checks that the row fields are valid.
func (r *ParetoRow) Validate() error {
	if r.Cause == "" {
		return errors.New("cause must not be empty")
	}
	if r.Count < 0 {
		return errors.New("count must not be negative")
	}
	if r.CumulativePercent < 0.0 || r.CumulativePercent > 100.0+1e-9 {
		return errors.New("cumulative percent must be between 0 and 100")
	}
	return nil
}
