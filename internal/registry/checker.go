// Package registry answers domain-name availability questions against a
// session-cached snapshot of already-registered names. The judgment is local
// only: a true conflict can still surface at submission time.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/nyuiela/revent/internal/platform/timeouts"
)

// NamesClient fetches the registered-name snapshot.
type NamesClient interface {
	Names(ctx context.Context) ([]string, error)
}

// HTTPClient queries the name registry over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a registry client for the given base URL.
func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("registry base url is required")
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeouts.HTTPRequest},
	}, nil
}

// Names fetches all registered names.
func (c *HTTPClient) Names(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/names", nil)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query registry: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Names []struct {
			Name string `json:"name"`
		} `json:"names"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}

	names := make([]string, 0, len(payload.Names))
	for _, entry := range payload.Names {
		names = append(names, entry.Name)
	}
	return names, nil
}

// WithHTTPClient overrides the HTTP client, primarily for tests.
func (c *HTTPClient) WithHTTPClient(client *http.Client) *HTTPClient {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// Checker caches the taken-name set for the session and answers availability
// lookups against it.
type Checker struct {
	client NamesClient

	mu     sync.Mutex
	loaded bool
	taken  map[string]struct{}
}

// NewChecker creates a checker over the given registry client.
func NewChecker(client NamesClient) *Checker {
	return &Checker{client: client}
}

// IsAvailable reports whether the candidate is absent from the cached
// taken-name set. Candidates are trimmed and lowercased before lookup; a
// blank candidate is never available. The snapshot is fetched at most once
// per session; a failed fetch is retried on the next call.
func (c *Checker) IsAvailable(ctx context.Context, candidate string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(candidate))
	if normalized == "" {
		return false, nil
	}

	taken, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}
	_, exists := taken[normalized]
	return !exists, nil
}

func (c *Checker) snapshot(ctx context.Context) (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.taken, nil
	}

	names, err := c.client.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch name snapshot: %w", err)
	}

	taken := make(map[string]struct{}, len(names))
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		taken[normalized] = struct{}{}
	}
	c.taken = taken
	c.loaded = true
	return c.taken, nil
}
