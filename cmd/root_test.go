package cmd

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/app"
	"github.com/pokedexfr/ingest/internal/config"
	"github.com/pokedexfr/ingest/internal/ingest"
	"github.com/pokedexfr/ingest/internal/pokeapi"
	"github.com/pokedexfr/ingest/internal/record"
	"github.com/pokedexfr/ingest/internal/store"
)

// stubCatalog serves a fixed number of well-formed entries from memory.
type stubCatalog struct {
	pokemon map[string]pokeapi.Pokemon
	species map[string]pokeapi.Species
	entries []pokeapi.ListEntry
}

func newStubCatalog(n int) *stubCatalog {
	c := &stubCatalog{
		pokemon: make(map[string]pokeapi.Pokemon),
		species: make(map[string]pokeapi.Species),
	}
	for i := 1; i <= n; i++ {
		slug := fmt.Sprintf("mon-%d", i)
		detailURL := fmt.Sprintf("https://catalog.test/pokemon/%d", i)
		speciesURL := fmt.Sprintf("https://catalog.test/pokemon-species/%d", i)
		c.entries = append(c.entries, pokeapi.ListEntry{Name: slug, URL: detailURL})
		c.pokemon[detailURL] = pokeapi.Pokemon{
			ID:      i,
			Name:    slug,
			Species: pokeapi.NamedResource{Name: slug, URL: speciesURL},
			Sprites: pokeapi.Sprites{FrontDefault: "https://img.test/" + slug + ".png"},
			Types:   []pokeapi.TypeSlot{{Slot: 1, Type: pokeapi.NamedResource{Name: "normal"}}},
		}
		c.species[speciesURL] = pokeapi.Species{ID: i, Name: slug}
	}
	return c
}

func (c *stubCatalog) ListPokemon(_ context.Context, offset, limit int) (pokeapi.ListResponse, error) {
	entries := c.entries
	if offset < len(entries) {
		entries = entries[offset:]
	} else {
		entries = nil
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return pokeapi.ListResponse{Count: len(c.entries), Results: entries}, nil
}

func (c *stubCatalog) GetPokemon(_ context.Context, detailURL string) (pokeapi.Pokemon, []byte, error) {
	p, ok := c.pokemon[detailURL]
	if !ok {
		return pokeapi.Pokemon{}, nil, fmt.Errorf("no pokemon at %s", detailURL)
	}
	return p, []byte("{}"), nil
}

func (c *stubCatalog) GetSpecies(_ context.Context, speciesURL string) (pokeapi.Species, error) {
	s, ok := c.species[speciesURL]
	if !ok {
		return pokeapi.Species{}, fmt.Errorf("no species at %s", speciesURL)
	}
	return s, nil
}

// installStubApp swaps the app factory for one backed by an in-memory
// store and a stub catalog, restoring the original on cleanup.
func installStubApp(t *testing.T, catalog *stubCatalog) *store.Memory {
	t.Helper()

	mem := store.NewMemory()
	original := newApp
	newApp = func(_ context.Context, cfg config.Config) (*app.App, error) {
		return &app.App{
			Config: cfg,
			Logger: zap.NewNop(),
			Store:  mem,
			Orchestrator: ingest.New(ingest.Deps{
				Catalog:    catalog,
				Normalizer: record.NewNormalizer(nil, nil),
				Store:      mem,
			}),
		}, nil
	}
	t.Cleanup(func() { newApp = original })
	return mem
}

func TestSeedCommandIngestsCatalog(t *testing.T) {
	mem := installStubApp(t, newStubCatalog(5))

	root := newRootCmd()
	root.SetArgs([]string{"seed", "--limit", "5", "--concurrency", "2"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Equal(t, 5, mem.Len())
}

func TestSeedCommandLimitFlagTrimsRun(t *testing.T) {
	mem := installStubApp(t, newStubCatalog(5))

	root := newRootCmd()
	root.SetArgs([]string{"seed", "--limit", "2"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Equal(t, 2, mem.Len())
}

func TestSyncCriesCommandRequiresResolver(t *testing.T) {
	installStubApp(t, newStubCatalog(1))

	root := newRootCmd()
	root.SetArgs([]string{"sync-cries"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
}

func TestFixRegionsCommandRunsCleanOnEmptyStore(t *testing.T) {
	installStubApp(t, newStubCatalog(1))

	root := newRootCmd()
	root.SetArgs([]string{"fix-regions"})
	require.NoError(t, root.ExecuteContext(context.Background()))
}

func TestUnknownSubcommandFails(t *testing.T) {
	installStubApp(t, newStubCatalog(1))

	root := newRootCmd()
	root.SetArgs([]string{"does-not-exist"})
	require.Error(t, root.ExecuteContext(context.Background()))
}
