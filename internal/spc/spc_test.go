package spc

import (
	"math"
	"testing"
)

func TestLimits(t *testing.T) {
	// mean 10, sample std dev 1 (values 8..12)
	values := []float64{8, 9, 10, 11, 12}
	limits, err := Limits(values)
	if err != nil {
		t.Fatalf("Limits failed: %v", err)
	}

	if math.Abs(limits.Mean-10.0) > 1e-9 {
		t.Errorf("Expected mean 10, got %f", limits.Mean)
	}
	sigma := math.Sqrt(2.5) // variance = (4+1+0+1+4)/4
	if math.Abs(limits.UCL-(10+3*sigma)) > 1e-9 {
		t.Errorf("Unexpected UCL %f", limits.UCL)
	}
	if math.Abs(limits.LCL-(10-3*sigma)) > 1e-9 {
		t.Errorf("Unexpected LCL %f", limits.LCL)
	}
}

func TestLimits_TooFewValues(t *testing.T) {
	if _, err := Limits([]float64{1}); err == nil {
		t.Error("Expected error for single value")
	}
}

func TestOutOfControl(t *testing.T) {
	values := []float64{15.1, 15.2, 15.3, 15.2, 15.1, 15.3, 15.2, 17.5, 15.2, 15.1}
	limits, err := Limits(values)
	if err != nil {
		t.Fatalf("Limits failed: %v", err)
	}

	ooc := limits.OutOfControl(values)
	if len(ooc) != 1 {
		t.Fatalf("Expected 1 out-of-control point, got %d (%v)", len(ooc), ooc)
	}
	if ooc[0] != 7 {
		t.Errorf("Expected index 7 flagged, got %d", ooc[0])
	}
}

func TestOutOfControl_StableSeries(t *testing.T) {
	values := []float64{1.0, 1.1, 0.9, 1.05, 0.95}
	limits, err := Limits(values)
	if err != nil {
		t.Fatalf("Limits failed: %v", err)
	}
	if ooc := limits.OutOfControl(values); len(ooc) != 0 {
		t.Errorf("Expected no out-of-control points, got %v", ooc)
	}
}

func TestPpk(t *testing.T) {
	// mean 10, sigma sqrt(2.5); asymmetric specs make PPL the binding side
	values := []float64{8, 9, 10, 11, 12}
	ppk, err := Ppk(values, 7, 20)
	if err != nil {
		t.Fatalf("Ppk failed: %v", err)
	}
	sigma := math.Sqrt(2.5)
	want := (10.0 - 7.0) / (3 * sigma)
	if math.Abs(ppk-want) > 1e-9 {
		t.Errorf("Expected Ppk %f, got %f", want, ppk)
	}
}

func TestPpk_ZeroVariance(t *testing.T) {
	ppk, err := Ppk([]float64{5, 5, 5, 5}, 0, 10)
	if err != nil {
		t.Fatalf("Ppk failed: %v", err)
	}
	if !math.IsInf(ppk, 1) {
		t.Errorf("Expected +Inf for zero variance, got %f", ppk)
	}
}

func TestPpk_InvalidSpecs(t *testing.T) {
	if _, err := Ppk([]float64{1, 2, 3}, 10, 10); err == nil {
		t.Error("Expected error for usl <= lsl")
	}
	if _, err := Ppk([]float64{1}, 0, 10); err == nil {
		t.Error("Expected error for single value")
	}
}
