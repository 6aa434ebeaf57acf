// Package pareto ranks historical deviation root causes by frequency and
// computes the cumulative-percentage curve (the 80/20 view consumed by the
// bar + cumulative-line chart on the deviation hub).
package pareto

import (
	"sort"

	"github.com/arvense/batchsight/internal/models"
)

// Aggregate groups confirmed deviation records by root cause, counts them,
// sorts descending by count (ties broken by cause label so output is
// reproducible), and computes the running cumulative percentage of the
// total. Records without a confirmed root cause are skipped. An input with
// no confirmed records yields an empty, non-nil slice; how to render
// "no data" is the caller's decision.
func Aggregate(records []models.DeviationRecord) []models.ParetoRow {
	counts := make(map[string]int)
	total := 0
	for _, rec := range records {
		if !rec.Confirmed() {
			continue
		}
		counts[rec.RootCause]++
		total++
	}

	rows := make([]models.ParetoRow, 0, len(counts))
	for cause, count := range counts {
		rows = append(rows, models.ParetoRow{Cause: cause, Count: count})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Cause < rows[j].Cause
	})

	running := 0
	for i := range rows {
		running += rows[i].Count
		rows[i].CumulativePercent = float64(running) / float64(total) * 100.0
	}
	return rows
}
