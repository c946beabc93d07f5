// Package publisher parses publisher command flags and launches the
// publication runtime.
package publisher

import (
	"context"
	"flag"
	"time"

	publisherserver "github.com/nyuiela/revent/internal/app/publisher"
	entrypoint "github.com/nyuiela/revent/internal/platform/cmd"
	"github.com/nyuiela/revent/internal/platform/discovery"
)

// Config holds publisher command configuration.
type Config struct {
	Port              int           `env:"REVENT_PUBLISHER_PORT" envDefault:"8095"`
	DBPath            string        `env:"REVENT_PUBLISHER_DB_PATH" envDefault:"data/publisher.db"`
	ContentStoreURL   string        `env:"REVENT_CONTENT_STORE_URL"`
	ContentStoreToken string        `env:"REVENT_CONTENT_STORE_TOKEN"`
	RelayURL          string        `env:"REVENT_RELAY_URL"`
	IndexerURL        string        `env:"REVENT_INDEXER_URL"`
	RegistryURL       string        `env:"REVENT_REGISTRY_URL"`
	Network           string        `env:"REVENT_NETWORK" envDefault:"testnet"`
	PollInterval      time.Duration `env:"REVENT_VERIFY_POLL_INTERVAL" envDefault:"3s"`
	MaxVerifyAttempts int           `env:"REVENT_VERIFY_MAX_ATTEMPTS" envDefault:"10"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ContentStoreURL = discovery.OrDefaultHTTPBaseURL(cfg.ContentStoreURL, discovery.ServiceContentStore)
	cfg.RelayURL = discovery.OrDefaultHTTPBaseURL(cfg.RelayURL, discovery.ServiceRelay)
	cfg.IndexerURL = discovery.OrDefaultHTTPBaseURL(cfg.IndexerURL, discovery.ServiceIndexer)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The publisher health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The publisher SQLite database path")
	fs.StringVar(&cfg.ContentStoreURL, "content-store-url", cfg.ContentStoreURL, "Content store base URL")
	fs.StringVar(&cfg.ContentStoreToken, "content-store-token", cfg.ContentStoreToken, "Content store bearer token")
	fs.StringVar(&cfg.RelayURL, "relay-url", cfg.RelayURL, "Transaction relay base URL")
	fs.StringVar(&cfg.IndexerURL, "indexer-url", cfg.IndexerURL, "Event index base URL")
	fs.StringVar(&cfg.RegistryURL, "registry-url", cfg.RegistryURL, "Domain registry base URL")
	fs.StringVar(&cfg.Network, "network", cfg.Network, "Target network for submitted batches")
	fs.DurationVar(&cfg.PollInterval, "verify-poll-interval", cfg.PollInterval, "Index verification poll interval")
	fs.IntVar(&cfg.MaxVerifyAttempts, "verify-max-attempts", cfg.MaxVerifyAttempts, "Maximum index verification attempts per run")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the publisher runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePublisher, func(context.Context) error {
		return publisherserver.Run(ctx, publisherserver.RuntimeConfig{
			Port:              cfg.Port,
			DBPath:            cfg.DBPath,
			ContentStoreURL:   cfg.ContentStoreURL,
			ContentStoreToken: cfg.ContentStoreToken,
			RelayURL:          cfg.RelayURL,
			IndexerURL:        cfg.IndexerURL,
			RegistryURL:       cfg.RegistryURL,
			Network:           cfg.Network,
			PollInterval:      cfg.PollInterval,
			MaxVerifyAttempts: cfg.MaxVerifyAttempts,
		})
	})
}
