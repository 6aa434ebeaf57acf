// Package lims pulls batch observations and deviation records from the
// quality system's export API into the local store. The wire format is the
// LIMS export JSON: features arrive untyped (string, number, or null) and
// are converted to the internal representation here.
package lims

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arvense/batchsight/internal/models"
)

// Client provides access to the LIMS export API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// batchExport is one batch record as the LIMS exports it.
type batchExport struct {
	BatchID    string             `json:"batch_id"`
	Sequence   int                `json:"sequence"`
	Timestamp  time.Time          `json:"timestamp"`
	Indicators map[string]float64 `json:"indicators"`
}

// deviationExport is one deviation record as the LIMS exports it. Features
// are untyped: strings are categorical, numbers numeric, null explicitly
// missing.
type deviationExport struct {
	ID          string         `json:"id"`
	Site        string         `json:"site"`
	Product     string         `json:"product"`
	Description string         `json:"description"`
	Features    map[string]any `json:"features"`
	RootCause   string         `json:"root_cause"`
	OpenedAt    time.Time      `json:"opened_at"`
	ClosedAt    *time.Time     `json:"closed_at"`
}

// NewClient creates a LIMS client against baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchObservations retrieves batch observations with a production sequence
// greater than afterSequence, oldest first.
func (c *Client) FetchObservations(ctx context.Context, afterSequence int) ([]models.BatchObservation, error) {
	u := fmt.Sprintf("%s/api/v1/batches?after_sequence=%s",
		c.baseURL, url.QueryEscape(strconv.Itoa(afterSequence)))

	resp, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batches: %w", err)
	}
	defer resp.Body.Close()

	var response struct {
		Batches []batchExport `json:"batches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode batches: %w", err)
	}

	observations := make([]models.BatchObservation, 0, len(response.Batches))
	for _, b := range response.Batches {
		obs := models.BatchObservation{
			BatchID:    b.BatchID,
			Sequence:   b.Sequence,
			Timestamp:  b.Timestamp,
			Indicators: b.Indicators,
		}
		if err := obs.Validate(); err != nil {
			return nil, fmt.Errorf("invalid batch %s in export: %w", b.BatchID, err)
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

// FetchDeviations retrieves all deviation records the LIMS currently exports.
func (c *Client) FetchDeviations(ctx context.Context) ([]models.DeviationRecord, error) {
	u := c.baseURL + "/api/v1/deviations"

	resp, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deviations: %w", err)
	}
	defer resp.Body.Close()

	var response struct {
		Deviations []deviationExport `json:"deviations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode deviations: %w", err)
	}

	records := make([]models.DeviationRecord, 0, len(response.Deviations))
	for _, d := range response.Deviations {
		rec, err := convertDeviation(d)
		if err != nil {
			return nil, fmt.Errorf("invalid deviation %s in export: %w", d.ID, err)
		}
		records = append(records, *rec)
	}
	return records, nil
}

func convertDeviation(d deviationExport) (*models.DeviationRecord, error) {
	features := make(map[string]models.FeatureValue, len(d.Features))
	for name, raw := range d.Features {
		switch v := raw.(type) {
		case nil:
			features[name] = models.MissingValue()
		case string:
			features[name] = models.Category(v)
		case float64:
			features[name] = models.Number(v)
		default:
			return nil, fmt.Errorf("feature %q has unsupported type %T", name, raw)
		}
	}

	rec := models.DeviationRecord{
		ID:          d.ID,
		Site:        d.Site,
		Product:     d.Product,
		Description: d.Description,
		Features:    features,
		RootCause:   d.RootCause,
		OpenedAt:    d.OpenedAt,
	}
	if d.ClosedAt != nil {
		rec.ClosedAt = *d.ClosedAt
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// doRequest performs an HTTP GET with retry on transport errors and 5xx.
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
