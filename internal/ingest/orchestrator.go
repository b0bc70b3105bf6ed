// Package ingest drives ingestion runs end to end: listing the source
// catalog, fanning work out over a bounded worker pool and aggregating
// the outcome counts.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/archive"
	"github.com/pokedexfr/ingest/internal/fetch"
	"github.com/pokedexfr/ingest/internal/metrics"
	"github.com/pokedexfr/ingest/internal/pokeapi"
	"github.com/pokedexfr/ingest/internal/publish"
	"github.com/pokedexfr/ingest/internal/record"
	"github.com/pokedexfr/ingest/internal/store"
)

// progressInterval is the item-count interval between progress reports.
const progressInterval = 25

// Catalog is the subset of the source API the orchestrator consumes.
type Catalog interface {
	ListPokemon(ctx context.Context, offset, limit int) (pokeapi.ListResponse, error)
	GetPokemon(ctx context.Context, detailURL string) (pokeapi.Pokemon, []byte, error)
	GetSpecies(ctx context.Context, speciesURL string) (pokeapi.Species, error)
}

// Normalizer turns raw payload pairs into canonical records.
type Normalizer interface {
	Normalize(ctx context.Context, pokemon pokeapi.Pokemon, species pokeapi.Species) (record.Record, error)
}

// Options parameterizes one seed run.
type Options struct {
	Limit       int
	Offset      int
	Concurrency int
	// Retries overrides the fetcher's configured retry budget for this
	// run. Nil keeps the configured value.
	Retries *int
	// Reset irreversibly clears the destination table before listing.
	Reset bool
	// ProgressEvery is the item-count interval between progress reports.
	ProgressEvery int
	// RunID identifies the run in logs and events. Generated when empty.
	RunID string
}

// Summary is the outcome of one seed run. Scanned always equals the
// number of listed entries, including failed ones.
type Summary struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Deps bundles the orchestrator's collaborators. Archive, Publisher,
// Cries and Logger are optional.
type Deps struct {
	Catalog    Catalog
	Normalizer Normalizer
	Store      store.Store
	Cries      record.CryResolver
	Archive    archive.Archive
	Publisher  publish.Publisher
	Logger     *zap.Logger
}

// Orchestrator runs the ingestion pipeline.
type Orchestrator struct {
	catalog    Catalog
	normalizer Normalizer
	store      store.Store
	cries      record.CryResolver
	archive    archive.Archive
	publisher  publish.Publisher
	logger     *zap.Logger
}

// New builds an Orchestrator, substituting no-op implementations for
// absent optional dependencies.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		catalog:    deps.Catalog,
		normalizer: deps.Normalizer,
		store:      deps.Store,
		cries:      deps.Cries,
		archive:    deps.Archive,
		publisher:  deps.Publisher,
		logger:     deps.Logger,
	}
	if o.archive == nil {
		o.archive = archive.NoOp{}
	}
	if o.publisher == nil {
		o.publisher = publish.NoOp{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Seed runs one full ingestion pass. A listing failure aborts the run;
// per-item failures are counted and the run continues.
func (o *Orchestrator) Seed(ctx context.Context, opts Options) (Summary, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ProgressEvery < 1 {
		opts.ProgressEvery = progressInterval
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Retries != nil {
		ctx = fetch.ContextWithRetries(ctx, *opts.Retries)
	}
	logger := o.logger.With(zap.String("run_id", opts.RunID))

	if opts.Reset {
		if err := o.store.Reset(ctx); err != nil {
			metrics.ObserveRun("seed", "failed")
			return Summary{}, fmt.Errorf("reset destination: %w", err)
		}
		logger.Info("destination table reset")
	}

	page, err := o.catalog.ListPokemon(ctx, opts.Offset, opts.Limit)
	if err != nil {
		metrics.ObserveRun("seed", "failed")
		return Summary{}, fmt.Errorf("list catalog: %w", err)
	}
	entries := page.Results
	total := len(entries)
	logger.Info("seed run starting",
		zap.Int("entries", total),
		zap.Int("offset", opts.Offset),
		zap.Int("limit", opts.Limit),
		zap.Int("concurrency", opts.Concurrency),
	)
	_ = o.publisher.Publish(ctx, publish.Event{
		Kind:       publish.KindRunStarted,
		RunID:      opts.RunID,
		OccurredAt: time.Now().UTC(),
		Scanned:    total,
	})

	var (
		cursor  atomic.Int64
		created atomic.Int64
		updated atomic.Int64
		failed  atomic.Int64
		wg      sync.WaitGroup
	)

	worker := func() {
		defer wg.Done()
		for {
			idx := int(cursor.Add(1)) - 1
			if idx >= total {
				return
			}
			o.processEntry(ctx, logger, opts.RunID, idx, total, entries[idx], &created, &updated, &failed)

			if done := idx + 1; done%opts.ProgressEvery == 0 || done == total {
				logger.Info("seed progress",
					zap.Int("position", done),
					zap.Int("total", total),
					zap.Int64("created", created.Load()),
					zap.Int64("updated", updated.Load()),
					zap.Int64("failed", failed.Load()),
				)
			}
		}
	}

	wg.Add(opts.Concurrency)
	for i := 0; i < opts.Concurrency; i++ {
		go worker()
	}
	wg.Wait()

	summary := Summary{
		Scanned: total,
		Created: int(created.Load()),
		Updated: int(updated.Load()),
		Failed:  int(failed.Load()),
	}
	logger.Info("seed run finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed),
	)
	metrics.ObserveRun("seed", "ok")
	_ = o.publisher.Publish(ctx, publish.Event{
		Kind:       publish.KindRunFinished,
		RunID:      opts.RunID,
		OccurredAt: time.Now().UTC(),
		Scanned:    summary.Scanned,
		Created:    summary.Created,
		Updated:    summary.Updated,
		Failed:     summary.Failed,
	})
	return summary, nil
}

func (o *Orchestrator) processEntry(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	idx, total int,
	entry pokeapi.ListEntry,
	created, updated, failed *atomic.Int64,
) {
	start := time.Now()
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	result, err := o.ingestOne(ctx, entry)
	duration := time.Since(start)
	if err != nil {
		failed.Add(1)
		metrics.ObserveItem("failed", duration)
		logger.Warn("item failed",
			zap.Int("position", idx+1),
			zap.Int("total", total),
			zap.String("name", entry.Name),
			zap.Error(err),
		)
		_ = o.publisher.Publish(ctx, publish.Event{
			Kind:       publish.KindItemFailed,
			RunID:      runID,
			OccurredAt: time.Now().UTC(),
			Item:       entry.Name,
			Error:      err.Error(),
		})
		return
	}

	switch result {
	case store.Created:
		created.Add(1)
	case store.Updated:
		updated.Add(1)
	}
	metrics.ObserveItem(string(result), duration)
}

// ingestOne fetches, normalizes, archives and persists one entry.
func (o *Orchestrator) ingestOne(ctx context.Context, entry pokeapi.ListEntry) (store.Result, error) {
	pokemon, raw, err := o.catalog.GetPokemon(ctx, entry.URL)
	if err != nil {
		return "", err
	}
	species, err := o.catalog.GetSpecies(ctx, pokemon.Species.URL)
	if err != nil {
		return "", err
	}
	rec, err := o.normalizer.Normalize(ctx, pokemon, species)
	if err != nil {
		return "", err
	}

	// Raw payloads are archived best-effort; replay material is not worth
	// failing an item over.
	if uri, archiveErr := o.archive.Put(ctx, rec.Slug+".json", "application/json", raw); archiveErr != nil {
		o.logger.Warn("archive write failed", zap.String("slug", rec.Slug), zap.Error(archiveErr))
	} else if uri != "" {
		o.logger.Debug("raw payload archived", zap.String("slug", rec.Slug), zap.String("uri", uri))
	}

	return o.store.Upsert(ctx, rec)
}
