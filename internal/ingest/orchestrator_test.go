package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokedexfr/ingest/internal/fetch"
	"github.com/pokedexfr/ingest/internal/pokeapi"
	"github.com/pokedexfr/ingest/internal/publish"
	"github.com/pokedexfr/ingest/internal/record"
	"github.com/pokedexfr/ingest/internal/store"
)

type fakeCatalog struct {
	entries []pokeapi.ListEntry
	listErr error
	pokemon map[string]pokeapi.Pokemon
	species map[string]pokeapi.Species
	failURL map[string]error

	mu         sync.Mutex
	fetchCount map[string]int
}

func (f *fakeCatalog) ListPokemon(context.Context, int, int) (pokeapi.ListResponse, error) {
	if f.listErr != nil {
		return pokeapi.ListResponse{}, f.listErr
	}
	return pokeapi.ListResponse{Count: len(f.entries), Results: f.entries}, nil
}

func (f *fakeCatalog) GetPokemon(_ context.Context, detailURL string) (pokeapi.Pokemon, []byte, error) {
	f.mu.Lock()
	if f.fetchCount == nil {
		f.fetchCount = map[string]int{}
	}
	f.fetchCount[detailURL]++
	f.mu.Unlock()

	if err := f.failURL[detailURL]; err != nil {
		return pokeapi.Pokemon{}, nil, err
	}
	payload := f.pokemon[detailURL]
	raw, _ := json.Marshal(payload)
	return payload, raw, nil
}

func (f *fakeCatalog) GetSpecies(_ context.Context, speciesURL string) (pokeapi.Species, error) {
	return f.species[speciesURL], nil
}

func (f *fakeCatalog) fetches(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCount[url]
}

// newFakeCatalog builds n valid entries with unique identities.
func newFakeCatalog(n int) *fakeCatalog {
	f := &fakeCatalog{
		pokemon: map[string]pokeapi.Pokemon{},
		species: map[string]pokeapi.Species{},
		failURL: map[string]error{},
	}
	for i := 1; i <= n; i++ {
		detailURL := fmt.Sprintf("https://catalog.example/pokemon/%d", i)
		speciesURL := fmt.Sprintf("https://catalog.example/pokemon-species/%d", i)
		slug := fmt.Sprintf("mon-%d", i)

		f.entries = append(f.entries, pokeapi.ListEntry{Name: slug, URL: detailURL})
		f.pokemon[detailURL] = pokeapi.Pokemon{
			ID:      i,
			Name:    slug,
			Species: pokeapi.NamedResource{Name: slug, URL: speciesURL},
			Sprites: pokeapi.Sprites{FrontDefault: fmt.Sprintf("https://img.example/%d.png", i)},
			Types:   []pokeapi.TypeSlot{{Slot: 1, Type: pokeapi.NamedResource{Name: "normal"}}},
		}
		f.species[speciesURL] = pokeapi.Species{
			ID:   i,
			Name: slug,
			Names: []pokeapi.LocalizedName{
				{Name: fmt.Sprintf("Mon %d", i), Language: pokeapi.NamedResource{Name: "fr"}},
			},
		}
	}
	return f
}

func newTestOrchestrator(catalog Catalog, st store.Store, pub publish.Publisher) *Orchestrator {
	return New(Deps{
		Catalog:    catalog,
		Normalizer: record.NewNormalizer(nil, nil),
		Store:      st,
		Publisher:  pub,
	})
}

func TestSeedCreatesAllEntries(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog(6)
	mem := store.NewMemory()
	o := newTestOrchestrator(catalog, mem, nil)

	summary, err := o.Seed(context.Background(), Options{Concurrency: 3})
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 6, Created: 6}, summary)
	assert.Equal(t, 6, mem.Len())
}

func TestSeedIsolatesItemFailures(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog(10)
	catalog.failURL["https://catalog.example/pokemon/4"] = errors.New("connection reset")
	mem := store.NewMemory()
	pub := publish.NewMemory()
	o := newTestOrchestrator(catalog, mem, pub)

	summary, err := o.Seed(context.Background(), Options{Concurrency: 4})
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Scanned)
	assert.Equal(t, 9, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 9, mem.Len())

	var failures []publish.Event
	for _, event := range pub.Events() {
		if event.Kind == publish.KindItemFailed {
			failures = append(failures, event)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, "mon-4", failures[0].Item)
	assert.Contains(t, failures[0].Error, "connection reset")
}

func TestSeedReportsUpdatesOnSecondRun(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog(4)
	mem := store.NewMemory()
	o := newTestOrchestrator(catalog, mem, nil)
	ctx := context.Background()

	first, err := o.Seed(ctx, Options{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, first.Created)

	second, err := o.Seed(ctx, Options{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 4, Updated: 4}, second)
	assert.Equal(t, 4, mem.Len())
}

func TestSeedClaimsEachEntryExactlyOnce(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog(40)
	mem := store.NewMemory()
	o := newTestOrchestrator(catalog, mem, nil)

	summary, err := o.Seed(context.Background(), Options{Concurrency: 8})
	require.NoError(t, err)
	assert.Equal(t, 40, summary.Created)
	for _, entry := range catalog.entries {
		assert.Equal(t, 1, catalog.fetches(entry.URL), entry.URL)
	}
}

func TestSeedResetClearsExistingRecords(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	_, err := mem.Upsert(context.Background(), record.Record{
		Slug: "stale", Name: "Stale", ImageURL: "https://img.example/stale.png", Types: []string{"NORMAL"},
	})
	require.NoError(t, err)

	catalog := newFakeCatalog(2)
	o := newTestOrchestrator(catalog, mem, nil)

	summary, err := o.Seed(context.Background(), Options{Concurrency: 1, Reset: true})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 2, mem.Len())
	_, ok := mem.Get("stale")
	assert.False(t, ok)
}

func TestSeedListingFailureAbortsRun(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog(0)
	catalog.listErr = errors.New("catalog unreachable")
	o := newTestOrchestrator(catalog, store.NewMemory(), nil)

	_, err := o.Seed(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list catalog")
}

func TestSeedPublishesRunLifecycle(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog(1)
	pub := publish.NewMemory()
	o := newTestOrchestrator(catalog, store.NewMemory(), pub)

	_, err := o.Seed(context.Background(), Options{RunID: "run-1"})
	require.NoError(t, err)

	events := pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, publish.KindRunStarted, events[0].Kind)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, publish.KindRunFinished, events[1].Kind)
	assert.Equal(t, 1, events[1].Created)
}

// End-to-end over real HTTP: entry 2's detail endpoint returns 503 twice
// before succeeding, which the fetcher absorbs within its retry budget.
func TestSeedRecoversFromTransientDetailFailures(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		attempts int
	)
	mux := http.NewServeMux()
	var baseURL string

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/pokemon", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, pokeapi.ListResponse{
			Count: 3,
			Results: []pokeapi.ListEntry{
				{Name: "mon-1", URL: baseURL + "/pokemon/1"},
				{Name: "mon-2", URL: baseURL + "/pokemon/2"},
				{Name: "mon-3", URL: baseURL + "/pokemon/3"},
			},
		})
	})
	for i := 1; i <= 3; i++ {
		mux.HandleFunc(fmt.Sprintf("/pokemon/%d", i), func(w http.ResponseWriter, _ *http.Request) {
			if i == 2 {
				mu.Lock()
				attempts++
				flaky := attempts <= 2
				mu.Unlock()
				if flaky {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
			}
			writeJSON(w, pokeapi.Pokemon{
				ID:      i,
				Name:    fmt.Sprintf("mon-%d", i),
				Species: pokeapi.NamedResource{URL: fmt.Sprintf("%s/pokemon-species/%d", baseURL, i)},
				Sprites: pokeapi.Sprites{FrontDefault: fmt.Sprintf("https://img.example/%d.png", i)},
				Types:   []pokeapi.TypeSlot{{Slot: 1, Type: pokeapi.NamedResource{Name: "normal"}}},
			})
		})
		mux.HandleFunc(fmt.Sprintf("/pokemon-species/%d", i), func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, pokeapi.Species{
				ID:   i,
				Name: fmt.Sprintf("mon-%d", i),
				Names: []pokeapi.LocalizedName{
					{Name: fmt.Sprintf("Mon %d", i), Language: pokeapi.NamedResource{Name: "fr"}},
				},
			})
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()
	baseURL = srv.URL

	fetcher := fetch.New(fetch.Config{MaxRetries: 3, BaseDelay: time.Millisecond}, nil)
	catalog := pokeapi.NewClient(srv.URL, fetcher)
	mem := store.NewMemory()
	o := New(Deps{
		Catalog:    catalog,
		Normalizer: record.NewNormalizer(nil, nil),
		Store:      mem,
	})

	summary, err := o.Seed(context.Background(), Options{Concurrency: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 3, Created: 3}, summary)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

// A per-run retry budget reaches the fetch layer even when the shared
// fetcher was built with no retries at all.
func TestSeedRetriesOptionOverridesFetcherBudget(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		attempts int
	)
	mux := http.NewServeMux()
	var baseURL string

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/pokemon", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, pokeapi.ListResponse{
			Count:   1,
			Results: []pokeapi.ListEntry{{Name: "mon-1", URL: baseURL + "/pokemon/1"}},
		})
	})
	mux.HandleFunc("/pokemon/1", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		flaky := attempts <= 2
		mu.Unlock()
		if flaky {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, pokeapi.Pokemon{
			ID:      1,
			Name:    "mon-1",
			Species: pokeapi.NamedResource{URL: baseURL + "/pokemon-species/1"},
			Sprites: pokeapi.Sprites{FrontDefault: "https://img.example/1.png"},
			Types:   []pokeapi.TypeSlot{{Slot: 1, Type: pokeapi.NamedResource{Name: "normal"}}},
		})
	})
	mux.HandleFunc("/pokemon-species/1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, pokeapi.Species{ID: 1, Name: "mon-1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	baseURL = srv.URL

	fetcher := fetch.New(fetch.Config{MaxRetries: 0, BaseDelay: time.Millisecond}, nil)
	catalog := pokeapi.NewClient(srv.URL, fetcher)
	mem := store.NewMemory()
	o := New(Deps{
		Catalog:    catalog,
		Normalizer: record.NewNormalizer(nil, nil),
		Store:      mem,
	})

	retries := 2
	summary, err := o.Seed(context.Background(), Options{Concurrency: 1, Limit: 1, Retries: &retries})
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 1, Created: 1}, summary)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}
