// Package store persists canonical records.
package store

import (
	"context"

	"github.com/pokedexfr/ingest/internal/record"
)

// Result reports whether an upsert inserted a new row or replaced an
// existing one.
type Result string

const (
	Created Result = "created"
	Updated Result = "updated"
)

// CryRow is the projection used by the cry re-sync pass.
type CryRow struct {
	ID                int64
	Slug              string
	Name              string
	NationalDexNumber int
	CryURL            string
}

// RegionRow is the projection used by the region repair pass.
type RegionRow struct {
	ID      int64
	Regions []record.RegionMembership
}

// Store is the persistence contract of the ingestion pipeline.
type Store interface {
	// Upsert inserts or fully replaces the record, keyed primarily on
	// slug with ordered secondary-identity fallbacks.
	Upsert(ctx context.Context, rec record.Record) (Result, error)

	// Reset irreversibly clears every stored record.
	Reset(ctx context.Context) error

	// ListForCrySync returns rows ordered by name. When onlyMissing is
	// set, rows that already carry a cry URL are skipped. limit <= 0
	// means no limit.
	ListForCrySync(ctx context.Context, onlyMissing bool, limit int) ([]CryRow, error)

	// UpdateCryURL replaces the cry URL of one row.
	UpdateCryURL(ctx context.Context, id int64, cryURL string) error

	// ListRegions returns every row holding at least one region
	// membership.
	ListRegions(ctx context.Context) ([]RegionRow, error)

	// UpdateRegions replaces the region memberships of one row.
	UpdateRegions(ctx context.Context, id int64, regions []record.RegionMembership) error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close()
}
