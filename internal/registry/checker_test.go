package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeNamesClient struct {
	names []string
	err   error
	calls int
}

func (f *fakeNamesClient) Names(ctx context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.names, nil
}

func TestIsAvailableCaseInsensitive(t *testing.T) {
	client := &fakeNamesClient{names: []string{"myevent.io", "Another.IO"}}
	checker := NewChecker(client)

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{name: "taken exact", candidate: "myevent.io", want: false},
		{name: "taken mixed case", candidate: "MyEvent.IO", want: false},
		{name: "taken cached mixed case", candidate: "another.io", want: false},
		{name: "free", candidate: "fresh.io", want: true},
		{name: "free with whitespace", candidate: "  fresh.io  ", want: true},
		{name: "blank never available", candidate: "   ", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := checker.IsAvailable(context.Background(), tc.candidate)
			if err != nil {
				t.Fatalf("is available: %v", err)
			}
			if got != tc.want {
				t.Fatalf("IsAvailable(%q) = %v, want %v", tc.candidate, got, tc.want)
			}
		})
	}
}

func TestSnapshotFetchedOncePerSession(t *testing.T) {
	client := &fakeNamesClient{names: []string{"myevent.io"}}
	checker := NewChecker(client)

	for range 5 {
		if _, err := checker.IsAvailable(context.Background(), "candidate.io"); err != nil {
			t.Fatalf("is available: %v", err)
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected single snapshot fetch, got %d", client.calls)
	}
}

func TestSnapshotFetchErrorRetriedNextCall(t *testing.T) {
	client := &fakeNamesClient{err: errors.New("registry unreachable")}
	checker := NewChecker(client)

	if _, err := checker.IsAvailable(context.Background(), "candidate.io"); err == nil {
		t.Fatal("expected fetch error")
	}

	client.err = nil
	client.names = []string{"candidate.io"}
	available, err := checker.IsAvailable(context.Background(), "candidate.io")
	if err != nil {
		t.Fatalf("is available after recovery: %v", err)
	}
	if available {
		t.Fatal("expected candidate to be taken after successful fetch")
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 fetch calls, got %d", client.calls)
	}
}

func TestHTTPClientNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/names" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"names": []map[string]string{{"name": "myevent.io"}, {"name": "other.io"}},
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL)
	if err != nil {
		t.Fatalf("new http client: %v", err)
	}

	names, err := client.Names(context.Background())
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 2 || names[0] != "myevent.io" {
		t.Fatalf("unexpected names: %v", names)
	}
}
