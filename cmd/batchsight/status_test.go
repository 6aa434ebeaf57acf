package main

import (
	"strings"
	"testing"
)

func TestControlRow(t *testing.T) {
	// mean 10, sigma sqrt(2.5): UCL 14.743, LCL 5.257
	row := controlRow("conductivity", []float64{8, 9, 10, 11, 12})
	for _, want := range []string{"conductivity", "10.000", "5.257", "14.743"} {
		if !strings.Contains(row, want) {
			t.Errorf("Expected row to contain %q, got %q", want, row)
		}
	}
	if !strings.HasSuffix(row, "0") {
		t.Errorf("Expected 0 out-of-control points, got %q", row)
	}
}

func TestControlRow_TooFewBatches(t *testing.T) {
	row := controlRow("hmw_impurity", []float64{0.4})
	if !strings.Contains(row, "hmw_impurity") {
		t.Errorf("Indicator name missing from row: %q", row)
	}
	if !strings.Contains(row, "needs at least 2 batches") {
		t.Errorf("Expected under-sampled notice, got %q", row)
	}
}
