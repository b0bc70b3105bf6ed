package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pokedexfr/ingest/internal/record"
)

// Memory is an in-memory Store used by tests and local dry runs. It
// enforces the same identity semantics as the Postgres store: slug is
// the primary key, name and poke_api_id act as secondary identities.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]record.Record
	ids    map[string]int64 // slug -> id
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		rows:   map[int64]record.Record{},
		ids:    map[string]int64{},
	}
}

func (m *Memory) Close() {}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) EnsureSchema(context.Context) error { return nil }

// Upsert stores the record, replacing an existing row found under the
// slug, name or poke_api_id identity.
func (m *Memory) Upsert(_ context.Context, rec record.Record) (Result, error) {
	if rec.Slug == "" {
		return "", fmt.Errorf("record slug is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.ids[rec.Slug]; ok {
		m.replace(id, rec)
		return Updated, nil
	}
	for id, existing := range m.rows {
		if existing.Name == rec.Name || (rec.PokeAPIID > 0 && existing.PokeAPIID == rec.PokeAPIID) {
			m.replace(id, rec)
			return Updated, nil
		}
	}

	id := m.nextID
	m.nextID++
	m.rows[id] = rec
	m.ids[rec.Slug] = id
	return Created, nil
}

func (m *Memory) replace(id int64, rec record.Record) {
	delete(m.ids, m.rows[id].Slug)
	m.rows[id] = rec
	m.ids[rec.Slug] = id
}

// Reset drops every stored record.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = map[int64]record.Record{}
	m.ids = map[string]int64{}
	return nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Get returns the stored record for a slug.
func (m *Memory) Get(slug string) (record.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[slug]
	if !ok {
		return record.Record{}, false
	}
	return m.rows[id], true
}

// ListForCrySync mirrors the Postgres projection, ordered by name.
func (m *Memory) ListForCrySync(_ context.Context, onlyMissing bool, limit int) ([]CryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CryRow
	for id, rec := range m.rows {
		if onlyMissing && rec.CryURL != "" {
			continue
		}
		out = append(out, CryRow{
			ID:                id,
			Slug:              rec.Slug,
			Name:              rec.Name,
			NationalDexNumber: rec.NationalDexNumber,
			CryURL:            rec.CryURL,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateCryURL replaces the cry URL of one row.
func (m *Memory) UpdateCryURL(_ context.Context, id int64, cryURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("no record with id %d", id)
	}
	rec.CryURL = cryURL
	m.rows[id] = rec
	return nil
}

// ListRegions returns rows holding at least one region membership.
func (m *Memory) ListRegions(context.Context) ([]RegionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RegionRow
	for id, rec := range m.rows {
		if len(rec.Regions) == 0 {
			continue
		}
		regions := append([]record.RegionMembership(nil), rec.Regions...)
		out = append(out, RegionRow{ID: id, Regions: regions})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateRegions replaces the region memberships of one row.
func (m *Memory) UpdateRegions(_ context.Context, id int64, regions []record.RegionMembership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("no record with id %d", id)
	}
	rec.Regions = append([]record.RegionMembership(nil), regions...)
	m.rows[id] = rec
	return nil
}
