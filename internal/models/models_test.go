package models

import (
	"math"
	"testing"
	"time"
)

func TestBatchObservation_Validate(t *testing.T) {
	now := time.Now()
	valid := BatchObservation{
		BatchID:    "B0100",
		Sequence:   1,
		Timestamp:  now,
		Indicators: map[string]float64{"peak_asymmetry": 1.1},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid observation rejected: %v", err)
	}

	tests := []struct {
		name string
		obs  BatchObservation
	}{
		{"empty batch ID", BatchObservation{Timestamp: now, Indicators: map[string]float64{"x": 1}}},
		{"negative sequence", BatchObservation{BatchID: "b", Sequence: -1, Timestamp: now, Indicators: map[string]float64{"x": 1}}},
		{"no indicators", BatchObservation{BatchID: "b", Timestamp: now}},
		{"NaN indicator", BatchObservation{BatchID: "b", Timestamp: now, Indicators: map[string]float64{"x": math.NaN()}}},
		{"infinite indicator", BatchObservation{BatchID: "b", Timestamp: now, Indicators: map[string]float64{"x": math.Inf(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.obs.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestRiskScore_Validate(t *testing.T) {
	valid := RiskScore{
		BatchID:        "B0100",
		Score:          1.0,
		Classification: ClassificationNormal,
		Contributions:  map[string]float64{"a": 0.5, "b": 0.5},
		ScoredAt:       time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid score rejected: %v", err)
	}

	inconsistent := valid
	inconsistent.Contributions = map[string]float64{"a": 0.9, "b": 0.5}
	if err := inconsistent.Validate(); err == nil {
		t.Error("Expected error when contributions do not reconstruct the score")
	}

	badClass := valid
	badClass.Classification = "critical"
	if err := badClass.Validate(); err == nil {
		t.Error("Expected error for unknown classification")
	}
}

func TestDeviationRecord_AgeAndOverdue(t *testing.T) {
	opened := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := opened.Add(45 * 24 * time.Hour)

	open := DeviationRecord{ID: "DEV-1", OpenedAt: opened}
	if got := open.Age(now); got != 45*24*time.Hour {
		t.Errorf("Expected age 45d, got %v", got)
	}
	if !open.Overdue(now) {
		t.Error("Expected 45-day-old open deviation to be overdue")
	}

	fresh := DeviationRecord{ID: "DEV-2", OpenedAt: now.Add(-5 * 24 * time.Hour)}
	if fresh.Overdue(now) {
		t.Error("5-day-old deviation must not be overdue")
	}

	closed := DeviationRecord{
		ID:        "DEV-3",
		OpenedAt:  opened,
		ClosedAt:  opened.Add(40 * 24 * time.Hour),
		RootCause: "Operator Error",
	}
	if closed.Overdue(now) {
		t.Error("Closed deviation must not be overdue")
	}
	if got := closed.Age(now); got != 40*24*time.Hour {
		t.Errorf("Expected closed age 40d, got %v", got)
	}
	if !closed.Confirmed() {
		t.Error("Closed record with root cause must be confirmed")
	}
	if open.Confirmed() {
		t.Error("Open record must not be confirmed")
	}
}

func TestDeviationRecord_Validate(t *testing.T) {
	opened := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	valid := DeviationRecord{
		ID:       "DEV-24-051",
		Site:     "CDMO Alpha",
		OpenedAt: opened,
		Features: map[string]FeatureValue{
			"unit_operation": Category("Chromatography"),
			"conductivity":   Number(17.5),
			"resin_lot":      MissingValue(),
		},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid record rejected: %v", err)
	}

	closedBeforeOpened := valid
	closedBeforeOpened.ClosedAt = opened.Add(-time.Hour)
	if err := closedBeforeOpened.Validate(); err == nil {
		t.Error("Expected error for closed_at before opened_at")
	}

	badFeature := valid
	badFeature.Features = map[string]FeatureValue{"x": Number(math.NaN())}
	if err := badFeature.Validate(); err == nil {
		t.Error("Expected error for NaN feature")
	}

	emptyCategory := valid
	emptyCategory.Features = map[string]FeatureValue{"x": Category("")}
	if err := emptyCategory.Validate(); err == nil {
		t.Error("Expected error for empty categorical value")
	}
}

func TestCausePrediction_Validate(t *testing.T) {
	valid := CausePrediction{
		ID: "p-1",
		Causes: []RankedCause{
			{Cause: "Buffer Preparation Error", Confidence: 0.7},
			{Cause: "Operator Error", Confidence: 0.3},
		},
		PredictedAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid prediction rejected: %v", err)
	}
	if top, ok := valid.Top(); !ok || top.Cause != "Buffer Preparation Error" {
		t.Errorf("Unexpected top cause: %+v", top)
	}

	tests := []struct {
		name   string
		causes []RankedCause
	}{
		{"does not sum to 1", []RankedCause{{Cause: "a", Confidence: 0.5}, {Cause: "b", Confidence: 0.3}}},
		{"not descending", []RankedCause{{Cause: "a", Confidence: 0.3}, {Cause: "b", Confidence: 0.7}}},
		{"confidence above 1", []RankedCause{{Cause: "a", Confidence: 1.2}}},
		{"empty label", []RankedCause{{Cause: "", Confidence: 1.0}}},
		{"empty distribution", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := CausePrediction{ID: "p", Causes: tt.causes, PredictedAt: time.Now()}
			if err := p.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestParetoRow_Validate(t *testing.T) {
	valid := ParetoRow{Cause: "Buffer Preparation Error", Count: 12, CumulativePercent: 40.0}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid row rejected: %v", err)
	}
	if err := (&ParetoRow{Cause: "", Count: 1, CumulativePercent: 10}).Validate(); err == nil {
		t.Error("Expected error for empty cause")
	}
	if err := (&ParetoRow{Cause: "x", Count: -1, CumulativePercent: 10}).Validate(); err == nil {
		t.Error("Expected error for negative count")
	}
	if err := (&ParetoRow{Cause: "x", Count: 1, CumulativePercent: 120}).Validate(); err == nil {
		t.Error("Expected error for cumulative percent above 100")
	}
}
