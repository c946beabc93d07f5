package publisher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nyuiela/revent/internal/indexer"
	"github.com/nyuiela/revent/internal/publication/storage"
	publicationsqlite "github.com/nyuiela/revent/internal/publication/storage/sqlite"
)

type staticIndex struct {
	records []indexer.Record
}

func (s *staticIndex) Events(ctx context.Context) ([]indexer.Record, error) {
	return s.records, nil
}

func TestRuntimeConfig_Normalized(t *testing.T) {
	cfg := RuntimeConfig{}.normalized()
	if cfg.Port != defaultPublisherPort {
		t.Fatalf("port = %d, want %d", cfg.Port, defaultPublisherPort)
	}
	if cfg.DBPath != defaultPublisherDB {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, defaultPublisherDB)
	}
	if cfg.Network != defaultNetwork {
		t.Fatalf("network = %q, want %q", cfg.Network, defaultNetwork)
	}

	cfg = RuntimeConfig{Port: 9000, DBPath: "x.db", Network: "mainnet"}.normalized()
	if cfg.Port != 9000 || cfg.DBPath != "x.db" || cfg.Network != "mainnet" {
		t.Fatalf("explicit values overridden: %+v", cfg)
	}
}

func TestNewSession_RequiresEndpoints(t *testing.T) {
	cases := []struct {
		name string
		cfg  RuntimeConfig
	}{
		{name: "content store", cfg: RuntimeConfig{RelayURL: "http://relay", IndexerURL: "http://index"}},
		{name: "relay", cfg: RuntimeConfig{ContentStoreURL: "http://content", IndexerURL: "http://index"}},
		{name: "indexer", cfg: RuntimeConfig{ContentStoreURL: "http://content", RelayURL: "http://relay"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.DBPath = filepath.Join(t.TempDir(), "publisher.db")
			if _, err := NewSession(tc.cfg); err == nil {
				t.Fatalf("NewSession succeeded without %s url", tc.name)
			}
		})
	}
}

func TestNewSession_BuildsOrchestrator(t *testing.T) {
	session, err := NewSession(RuntimeConfig{
		DBPath:          filepath.Join(t.TempDir(), "publisher.db"),
		ContentStoreURL: "http://content",
		RelayURL:        "http://relay",
		IndexerURL:      "http://index",
		RegistryURL:     "http://registry",
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			t.Fatalf("close session: %v", err)
		}
	}()
	if session.Orchestrator == nil {
		t.Fatal("orchestrator not built")
	}
	if session.Store == nil {
		t.Fatal("store not built")
	}
}

func TestResumePendingVerifications_RecordsOutcome(t *testing.T) {
	store := openTempPublicationStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// pub-1 timed out before shutdown and its event is now indexed.
	mustRecordStage(t, store, storage.StageRecord{
		PublicationID: "pub-1",
		Stage:         "verifying_event",
		Outcome:       storage.OutcomeTimeout,
		Attempts:      10,
		Title:         "Launch Party",
		Creator:       "0xsender",
		StartTime:     4070944800,
		EndTime:       4070952000,
		CreatedAt:     now,
	})
	// pub-2 timed out and is still missing from the index.
	mustRecordStage(t, store, storage.StageRecord{
		PublicationID: "pub-2",
		Stage:         "verifying_event",
		Outcome:       storage.OutcomeTimeout,
		Attempts:      10,
		Title:         "Other Event",
		Creator:       "0xother",
		CreatedAt:     now.Add(time.Second),
	})

	index := &staticIndex{records: []indexer.Record{
		{ID: "77", Title: "Launch Party", Creator: "0xelse"},
	}}
	verifier := indexer.NewVerifier(index).
		WithInterval(time.Millisecond).
		WithSleep(func(context.Context, time.Duration) error { return nil })

	if err := resumePendingVerifications(ctx, store, verifier, 3, func(string, ...any) {}); err != nil {
		t.Fatalf("resume: %v", err)
	}

	records, err := store.ListStages(ctx, 10)
	if err != nil {
		t.Fatalf("list stages: %v", err)
	}
	outcomes := map[string]storage.StageRecord{}
	for _, record := range records {
		if existing, ok := outcomes[record.PublicationID]; ok && existing.ID > record.ID {
			continue
		}
		outcomes[record.PublicationID] = record
	}

	resolved := outcomes["pub-1"]
	if resolved.Outcome != storage.OutcomeSucceeded {
		t.Fatalf("pub-1 outcome = %q, want %q", resolved.Outcome, storage.OutcomeSucceeded)
	}
	if resolved.EventID != "77" {
		t.Fatalf("pub-1 event id = %q, want 77", resolved.EventID)
	}

	stillPending := outcomes["pub-2"]
	if stillPending.Outcome != storage.OutcomeTimeout {
		t.Fatalf("pub-2 outcome = %q, want %q", stillPending.Outcome, storage.OutcomeTimeout)
	}
	if stillPending.Attempts != 3 {
		t.Fatalf("pub-2 attempts = %d, want 3", stillPending.Attempts)
	}

	// The resolved publication no longer shows up as pending.
	pending, err := store.ListPendingVerifications(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].PublicationID != "pub-2" {
		t.Fatalf("pending = %+v, want only pub-2", pending)
	}
}

func TestResumePendingVerifications_NothingPending(t *testing.T) {
	store := openTempPublicationStore(t)
	verifier := indexer.NewVerifier(&staticIndex{}).
		WithSleep(func(context.Context, time.Duration) error { return nil })

	if err := resumePendingVerifications(context.Background(), store, verifier, 1, func(string, ...any) {}); err != nil {
		t.Fatalf("resume with empty store: %v", err)
	}
}

func openTempPublicationStore(t *testing.T) *publicationsqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "publisher.db")
	store, err := publicationsqlite.Open(path)
	if err != nil {
		t.Fatalf("open publication store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close publication store: %v", err)
		}
	})
	return store
}

func mustRecordStage(t *testing.T, store *publicationsqlite.Store, record storage.StageRecord) {
	t.Helper()
	if err := store.RecordStage(context.Background(), record); err != nil {
		t.Fatalf("record stage: %v", err)
	}
}
