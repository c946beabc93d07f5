// Package indexer confirms that a submitted event has appeared in the
// externally-owned, eventually-consistent event index.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nyuiela/revent/internal/platform/timeouts"
)

// Record is one indexed event row.
type Record struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Creator   string `json:"creator"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// Client fetches the current index snapshot.
type Client interface {
	Events(ctx context.Context) ([]Record, error)
}

// HTTPClient queries the event index over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an index client for the given base URL.
func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("index base url is required")
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeouts.HTTPRequest},
	}, nil
}

// Events fetches the current index snapshot. The index carries no ordering
// guarantee relative to transaction submission.
func (c *HTTPClient) Events(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("build index request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query index: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Events []Record `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode index response: %w", err)
	}
	return payload.Events, nil
}

// WithHTTPClient overrides the HTTP client, primarily for tests.
func (c *HTTPClient) WithHTTPClient(client *http.Client) *HTTPClient {
	if client != nil {
		c.httpClient = client
	}
	return c
}
