package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nyuiela/revent/internal/platform/timeouts"
	"github.com/nyuiela/revent/internal/publication/batch"
)

// RelaySubmitter submits batches through an HTTP transaction relay.
type RelaySubmitter struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelaySubmitter creates a submitter for the given relay base URL.
func NewRelaySubmitter(baseURL string) (*RelaySubmitter, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("relay base url is required")
	}
	return &RelaySubmitter{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeouts.HTTPRequest},
	}, nil
}

// Submit posts the batch to the relay and reports lifecycle statuses in
// order: pending, built, then exactly one of success or failure.
func (s *RelaySubmitter) Submit(ctx context.Context, b batch.Batch, network string, observe Observer) (Result, error) {
	network = strings.TrimSpace(network)
	if network == "" {
		return Result{}, fmt.Errorf("network is required")
	}
	if b.Empty() {
		return Result{}, fmt.Errorf("batch has no operations")
	}

	notify(observe, StatusPending, "batch accepted")

	payload := struct {
		Operations []batch.Operation `json:"operations"`
		Network    string            `json:"network"`
	}{Operations: b.Operations, Network: network}

	body, err := json.Marshal(payload)
	if err != nil {
		notify(observe, StatusFailure, err.Error())
		return Result{}, fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		notify(observe, StatusFailure, err.Error())
		return Result{}, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	notify(observe, StatusBuilt, "transactions built")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		notify(observe, StatusFailure, err.Error())
		return Result{}, fmt.Errorf("submit batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := fmt.Sprintf("relay returned status %d", resp.StatusCode)
		notify(observe, StatusFailure, message)
		return Result{}, fmt.Errorf("submit batch: %s", message)
	}

	var decoded struct {
		Receipts []Receipt `json:"receipts"`
		Sender   string    `json:"sender"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		notify(observe, StatusFailure, err.Error())
		return Result{}, fmt.Errorf("decode relay response: %w", err)
	}
	if len(decoded.Receipts) != len(b.Operations) {
		message := fmt.Sprintf("expected %d receipts, got %d", len(b.Operations), len(decoded.Receipts))
		notify(observe, StatusFailure, message)
		return Result{}, fmt.Errorf("submit batch: %s", message)
	}

	notify(observe, StatusSuccess, "batch confirmed")
	return Result{Receipts: decoded.Receipts, Sender: decoded.Sender}, nil
}

// WithHTTPClient overrides the HTTP client, primarily for tests.
func (s *RelaySubmitter) WithHTTPClient(client *http.Client) *RelaySubmitter {
	if client != nil {
		s.httpClient = client
	}
	return s
}
