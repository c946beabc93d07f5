// Package publisher wires the publication orchestrator's collaborators into
// a runnable service.
package publisher

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nyuiela/revent/internal/chain"
	"github.com/nyuiela/revent/internal/content"
	"github.com/nyuiela/revent/internal/indexer"
	"github.com/nyuiela/revent/internal/publication/domain"
	"github.com/nyuiela/revent/internal/publication/service"
	"github.com/nyuiela/revent/internal/publication/storage"
	publicationsqlite "github.com/nyuiela/revent/internal/publication/storage/sqlite"
	"github.com/nyuiela/revent/internal/registry"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls publisher startup and dependencies.
type RuntimeConfig struct {
	Port              int
	DBPath            string
	ContentStoreURL   string
	ContentStoreToken string
	RelayURL          string
	IndexerURL        string
	// RegistryURL is optional; without it domain publication stages reject
	// availability checks as unsupported.
	RegistryURL       string
	Network           string
	PollInterval      time.Duration
	MaxVerifyAttempts int
}

const (
	defaultPublisherPort = 8095
	defaultPublisherDB   = "data/publisher.db"
	defaultNetwork       = "testnet"
)

// Session bundles one orchestrator with the collaborators it was built from.
type Session struct {
	Orchestrator *service.Orchestrator
	Store        storage.PublicationStore
	Verifier     *indexer.Verifier

	store *publicationsqlite.Store
}

// Close releases the session's durable store.
func (s *Session) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Close()
}

// NewSession builds a publication session from runtime configuration. The
// caller drives the orchestrator and owns Close.
func NewSession(cfg RuntimeConfig) (*Session, error) {
	cfg = cfg.normalized()
	if strings.TrimSpace(cfg.ContentStoreURL) == "" {
		return nil, fmt.Errorf("content store url is required")
	}
	if strings.TrimSpace(cfg.RelayURL) == "" {
		return nil, fmt.Errorf("relay url is required")
	}
	if strings.TrimSpace(cfg.IndexerURL) == "" {
		return nil, fmt.Errorf("indexer url is required")
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create publisher storage dir: %w", err)
		}
	}
	store, err := publicationsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open publisher sqlite store: %w", err)
	}

	metadata, err := content.NewPublisher(cfg.ContentStoreURL, cfg.ContentStoreToken)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build content publisher: %w", err)
	}
	submitter, err := chain.NewRelaySubmitter(cfg.RelayURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build relay submitter: %w", err)
	}
	indexClient, err := indexer.NewHTTPClient(cfg.IndexerURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build indexer client: %w", err)
	}
	verifier := indexer.NewVerifier(indexClient).WithInterval(cfg.PollInterval)

	var availability service.AvailabilityChecker
	if strings.TrimSpace(cfg.RegistryURL) != "" {
		namesClient, err := registry.NewHTTPClient(cfg.RegistryURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build registry client: %w", err)
		}
		availability = registry.NewChecker(namesClient)
	}

	orchestrator, err := service.NewOrchestrator(service.Deps{
		Metadata:          metadata,
		Submitter:         submitter,
		Verifier:          verifier,
		Availability:      availability,
		Store:             store,
		Network:           cfg.Network,
		MaxVerifyAttempts: cfg.MaxVerifyAttempts,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	return &Session{
		Orchestrator: orchestrator,
		Store:        store,
		Verifier:     verifier,
		store:        store,
	}, nil
}

func (cfg RuntimeConfig) normalized() RuntimeConfig {
	if cfg.Port <= 0 {
		cfg.Port = defaultPublisherPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultPublisherDB
	}
	if strings.TrimSpace(cfg.Network) == "" {
		cfg.Network = defaultNetwork
	}
	return cfg
}

// Run starts publisher runtime dependencies, resumes verifications that were
// interrupted by a restart, and serves health until the context is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.normalized()

	session, err := NewSession(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Printf("close publisher sqlite store: %v", closeErr)
		}
	}()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on publisher port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("publisher.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("publisher server listening at %v", listener.Addr())

	if err := resumePendingVerifications(ctx, session.Store, session.Verifier, cfg.MaxVerifyAttempts, log.Printf); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

// resumePendingVerifications re-runs index verification for publications whose
// last recorded verification attempt timed out before the process stopped.
// Each resumed run gets a fresh attempt budget; outcomes are appended to the
// same publication's stage history.
func resumePendingVerifications(ctx context.Context, store storage.PublicationStore, verifier *indexer.Verifier, maxAttempts int, logf func(format string, args ...any)) error {
	pending, err := store.ListPendingVerifications(ctx)
	if err != nil {
		return fmt.Errorf("list pending verifications: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	logf("resuming %d pending verification(s)", len(pending))

	for _, record := range pending {
		expected := indexer.Expectation{
			Title:     record.Title,
			Creator:   record.Creator,
			StartTime: record.StartTime,
			EndTime:   record.EndTime,
		}
		result, err := verifier.Verify(ctx, expected, maxAttempts)
		if err != nil {
			// Cancellation during shutdown; remaining records stay pending.
			return err
		}

		outcome := storage.OutcomeTimeout
		lastError := (&domain.VerificationTimeout{Attempts: result.Attempts}).Error()
		eventID := record.EventID
		if result.Found {
			outcome = storage.OutcomeSucceeded
			lastError = ""
			eventID = result.MatchedID
		}
		if recordErr := store.RecordStage(ctx, storage.StageRecord{
			PublicationID: record.PublicationID,
			Stage:         record.Stage,
			Outcome:       outcome,
			Attempts:      int32(result.Attempts),
			EventID:       eventID,
			LastError:     lastError,
			Title:         record.Title,
			Creator:       record.Creator,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			CreatedAt:     time.Now().UTC(),
		}); recordErr != nil {
			logf("record resumed verification for %s: %v", record.PublicationID, recordErr)
		}
	}
	return nil
}
