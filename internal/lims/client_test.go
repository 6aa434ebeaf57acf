package lims

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arvense/batchsight/internal/storage"
)

const batchesPayload = `{
	"batches": [
		{
			"batch_id": "B0101",
			"sequence": 11,
			"timestamp": "2024-06-01T08:00:00Z",
			"indicators": {"peak_asymmetry": 1.1, "hmw_impurity": 0.4}
		},
		{
			"batch_id": "B0102",
			"sequence": 12,
			"timestamp": "2024-06-02T08:00:00Z",
			"indicators": {"peak_asymmetry": 1.3, "hmw_impurity": 0.5}
		}
	]
}`

const deviationsPayload = `{
	"deviations": [
		{
			"id": "DEV-24-051",
			"site": "CDMO Alpha",
			"product": "rHuPH20",
			"description": "Conductivity excursion during elution",
			"features": {
				"unit_operation": "Chromatography",
				"conductivity": 17.5,
				"resin_lot": null
			},
			"root_cause": "",
			"opened_at": "2024-03-01T00:00:00Z",
			"closed_at": null
		},
		{
			"id": "DEV-24-052",
			"site": "CDMO Alpha",
			"product": "rHuPH20",
			"description": "Buffer pH out of range",
			"features": {
				"unit_operation": "Buffer Preparation",
				"ph": 6.2
			},
			"root_cause": "Buffer Preparation Error",
			"opened_at": "2024-02-10T00:00:00Z",
			"closed_at": "2024-03-05T00:00:00Z"
		}
	]
}`

func TestFetchObservations(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/batches" {
			t.Errorf("Expected path /api/v1/batches, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("after_sequence"); got != "10" {
			t.Errorf("Expected after_sequence=10, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(batchesPayload))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second)
	observations, err := client.FetchObservations(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchObservations failed: %v", err)
	}

	if len(observations) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(observations))
	}
	obs := observations[0]
	if obs.BatchID != "B0101" || obs.Sequence != 11 {
		t.Errorf("Unexpected observation: %+v", obs)
	}
	if obs.Indicators["hmw_impurity"] != 0.4 {
		t.Errorf("Unexpected indicators: %+v", obs.Indicators)
	}
}

func TestFetchObservations_RejectsInvalidExport(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"batches": [{"batch_id": "", "sequence": 1, "timestamp": "2024-06-01T08:00:00Z", "indicators": {"x": 1}}]}`))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second)
	if _, err := client.FetchObservations(context.Background(), 0); err == nil {
		t.Error("Expected error for batch without an ID")
	}
}

func TestFetchDeviations(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/deviations" {
			t.Errorf("Expected path /api/v1/deviations, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(deviationsPayload))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second)
	deviations, err := client.FetchDeviations(context.Background())
	if err != nil {
		t.Fatalf("FetchDeviations failed: %v", err)
	}

	if len(deviations) != 2 {
		t.Fatalf("Expected 2 deviations, got %d", len(deviations))
	}

	open := deviations[0]
	if open.ID != "DEV-24-051" || open.Confirmed() {
		t.Errorf("Unexpected first record: %+v", open)
	}
	// Untyped features must convert: string -> categorical, number -> numeric,
	// null -> explicitly missing.
	if f := open.Features["unit_operation"]; f.Categorical != "Chromatography" || f.IsNumeric {
		t.Errorf("Unexpected unit_operation: %+v", f)
	}
	if f := open.Features["conductivity"]; !f.IsNumeric || f.Numeric != 17.5 {
		t.Errorf("Unexpected conductivity: %+v", f)
	}
	if !open.Features["resin_lot"].Missing {
		t.Errorf("Expected resin_lot missing, got %+v", open.Features["resin_lot"])
	}

	confirmed := deviations[1]
	if !confirmed.Confirmed() || confirmed.RootCause != "Buffer Preparation Error" {
		t.Errorf("Unexpected second record: %+v", confirmed)
	}
	if confirmed.ClosedAt.IsZero() {
		t.Error("Expected closed_at to be set")
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	attempts := 0
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"batches": []}`))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second)
	observations, err := client.FetchObservations(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchObservations failed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(observations) != 0 {
		t.Errorf("Expected no observations, got %d", len(observations))
	}
}

func TestDoRequest_ClientErrorIsFatal(t *testing.T) {
	attempts := 0
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second)
	if _, err := client.FetchObservations(context.Background(), 0); err == nil {
		t.Error("Expected error for 404")
	}
	if attempts != 1 {
		t.Errorf("Expected no retry on 4xx, got %d attempts", attempts)
	}
}

func TestSync(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/batches":
			_, _ = w.Write([]byte(batchesPayload))
		case "/api/v1/deviations":
			_, _ = w.Write([]byte(deviationsPayload))
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second)
	stats, err := Sync(ctx, client, store)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if stats.Observations != 2 || stats.Deviations != 2 || stats.ClosedDeviations != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	seq, err := store.MaxSequence(ctx)
	if err != nil {
		t.Fatalf("MaxSequence failed: %v", err)
	}
	if seq != 12 {
		t.Errorf("Expected max sequence 12, got %d", seq)
	}

	// A second pass against unchanged upstream data must be a no-op.
	stats, err = Sync(ctx, client, store)
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if stats.Observations != 0 || stats.Deviations != 0 || stats.ClosedDeviations != 0 {
		t.Errorf("Expected no-op second sync, got %+v", stats)
	}
}

func TestSync_PicksUpUpstreamClosure(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	closed := false
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/batches":
			_, _ = w.Write([]byte(`{"batches": []}`))
		case "/api/v1/deviations":
			rootCause, closedAt := `""`, "null"
			if closed {
				rootCause, closedAt = `"Operator Error"`, `"2024-04-01T00:00:00Z"`
			}
			_, _ = w.Write([]byte(`{"deviations": [{
				"id": "DEV-24-060",
				"site": "CDMO Alpha",
				"features": {"unit_operation": "Filling"},
				"root_cause": ` + rootCause + `,
				"opened_at": "2024-03-01T00:00:00Z",
				"closed_at": ` + closedAt + `
			}]}`))
		}
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, 5*time.Second)
	if _, err := Sync(ctx, client, store); err != nil {
		t.Fatalf("Initial sync failed: %v", err)
	}

	closed = true
	stats, err := Sync(ctx, client, store)
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if stats.ClosedDeviations != 1 {
		t.Errorf("Expected 1 upstream closure applied, got %+v", stats)
	}

	rec, err := store.GetDeviation(ctx, "DEV-24-060")
	if err != nil {
		t.Fatalf("GetDeviation failed: %v", err)
	}
	if rec.RootCause != "Operator Error" || rec.ClosedAt.IsZero() {
		t.Errorf("Closure not applied: %+v", rec)
	}
}
