package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

// HTTPGateway talks to the planning server's REST surface.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Sync posts a change batch. A 409 is a normal response here: the body still
// carries per-change results, the status only signals that conflicts exist.
func (g *HTTPGateway) Sync(ctx context.Context, changes []domain.PlanningChange) (*SyncResponse, error) {
	body, err := json.Marshal(map[string]any{"changes": changes})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/planning/sync", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "sync", Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return nil, &domain.NetworkError{
			Op:        "sync",
			Err:       fmt.Errorf("unexpected status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var out SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.NetworkError{Op: "sync", Err: err, Retryable: false}
	}
	return &out, nil
}

func (g *HTTPGateway) LoadPlanningData(ctx context.Context, date time.Time) (*domain.PlanningData, error) {
	url := fmt.Sprintf("%s/planning/data/%s", g.baseURL, date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: "load", Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.NetworkError{
			Op:        "load",
			Err:       fmt.Errorf("unexpected status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var envelope struct {
		Data domain.PlanningData `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &domain.NetworkError{Op: "load", Err: err, Retryable: false}
	}
	return &envelope.Data, nil
}
