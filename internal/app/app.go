// Package app initializes and holds the long-lived services of the
// ingestion pipeline, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/archive"
	"github.com/pokedexfr/ingest/internal/config"
	"github.com/pokedexfr/ingest/internal/cry"
	"github.com/pokedexfr/ingest/internal/fetch"
	"github.com/pokedexfr/ingest/internal/ingest"
	"github.com/pokedexfr/ingest/internal/logging"
	"github.com/pokedexfr/ingest/internal/metrics"
	"github.com/pokedexfr/ingest/internal/pokeapi"
	"github.com/pokedexfr/ingest/internal/publish"
	"github.com/pokedexfr/ingest/internal/record"
	"github.com/pokedexfr/ingest/internal/store"
	"github.com/pokedexfr/ingest/internal/wiki"
)

// App holds every long-lived service. It is built once at startup and
// handed to commands and the HTTP server.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Store        store.Store
	Orchestrator *ingest.Orchestrator

	publisher publish.Publisher
}

// New wires the full service graph from configuration. It fails fast
// when any critical collaborator cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.L
	metrics.Init()

	fetcher := fetch.New(fetch.Config{
		MaxRetries: cfg.HTTP.MaxRetries,
		BaseDelay:  cfg.BackoffBase(),
		Timeout:    cfg.HTTPTimeout(),
		UserAgent:  cfg.HTTP.UserAgent,
		RPS:        cfg.HTTP.RPS,
		Burst:      cfg.HTTP.Burst,
	}, logger)

	catalog := pokeapi.NewClient(cfg.Source.BaseURL, fetcher)
	wikiClient := wiki.NewClient(cfg.Wiki.APIURL, fetcher)
	resolver := cry.NewResolver(wikiClient, catalog, cfg.Wiki.FileBaseURL, logger)
	normalizer := record.NewNormalizer(resolver, logger)

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	arch, err := newArchive(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	arch = archive.WithPrefix(arch, cfg.Archive.Prefix)

	pub, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	orchestrator := ingest.New(ingest.Deps{
		Catalog:    catalog,
		Normalizer: normalizer,
		Store:      st,
		Cries:      resolver,
		Archive:    arch,
		Publisher:  pub,
		Logger:     logger,
	})

	return &App{
		Config:       cfg,
		Logger:       logger,
		Store:        st,
		Orchestrator: orchestrator,
		publisher:    pub,
	}, nil
}

// Close releases held connections.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn("close publisher", zap.Error(err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not set, using the in-memory store; records will not survive the process")
		return store.NewMemory(), nil
	}

	pg, err := store.NewPostgres(ctx, store.PostgresConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetime) * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	logger.Info("connected to postgres")
	return pg, nil
}

func newArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (archive.Archive, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		if cfg.Archive.GCSBucket == "" {
			return nil, fmt.Errorf("archive provider is 'gcs' but archive.gcs_bucket is not set")
		}
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs archive: %w", err)
		}
		logger.Info("archiving raw payloads to gcs", zap.String("bucket", cfg.Archive.GCSBucket))
		return archive.NewGCS(client, cfg.Archive.GCSBucket)
	case "local":
		if cfg.Archive.LocalDir == "" {
			return nil, fmt.Errorf("archive provider is 'local' but archive.local_dir is not set")
		}
		logger.Info("archiving raw payloads locally", zap.String("dir", cfg.Archive.LocalDir))
		return archive.NewLocal(cfg.Archive.LocalDir)
	case "noop", "":
		return archive.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
}

func newPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (publish.Publisher, error) {
	switch cfg.Events.Provider {
	case "pubsub":
		if cfg.Events.ProjectID == "" || cfg.Events.TopicID == "" {
			return nil, fmt.Errorf("events provider is 'pubsub' but project_id or topic_id is not set")
		}
		logger.Info("publishing run events to pubsub", zap.String("topic", cfg.Events.TopicID))
		return publish.NewPubSub(ctx, cfg.Events.ProjectID, cfg.Events.TopicID, logger)
	case "noop", "":
		return publish.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown events provider: %s", cfg.Events.Provider)
	}
}
