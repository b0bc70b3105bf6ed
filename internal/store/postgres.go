package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/record"
)

const uniqueViolationCode = "23505"

// recordColumns is the full column list written on every insert and
// full-field update, in parameter order.
var recordColumns = []string{
	"poke_api_id", "national_dex_number", "slug", "name", "display_name",
	"img_url", "sprite_url", "cry_url", "description", "height", "weight",
	"base_experience", "generation", "habitat", "shape", "color",
	"growth_rate", "egg_groups", "types", "abilities", "base_stats",
	"capture_rate", "base_happiness", "hatch_counter", "gender_rate",
	"is_legendary", "is_mythical", "is_baby", "regions",
}

// PostgresConfig controls the connection pool behind the store.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Postgres is the pgx-backed Store implementation.
type Postgres struct {
	pool   dbPool
	logger *zap.Logger
}

// NewPostgres opens a connection pool and wraps it in a store.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresWithPool(pool, logger), nil
}

// NewPostgresWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresWithPool(pool dbPool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the pokemon table and its unique indexes when
// they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pokemon (
	id BIGSERIAL PRIMARY KEY,
	poke_api_id BIGINT,
	national_dex_number BIGINT NOT NULL DEFAULT 0,
	slug TEXT NOT NULL,
	name TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	img_url TEXT NOT NULL,
	sprite_url TEXT NOT NULL DEFAULT '',
	cry_url TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	height DOUBLE PRECISION NOT NULL DEFAULT 0,
	weight DOUBLE PRECISION NOT NULL DEFAULT 0,
	base_experience BIGINT NOT NULL DEFAULT 0,
	generation TEXT NOT NULL DEFAULT '',
	habitat TEXT NOT NULL DEFAULT '',
	shape TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '',
	growth_rate TEXT NOT NULL DEFAULT '',
	egg_groups TEXT[] NOT NULL DEFAULT '{}',
	types TEXT[] NOT NULL,
	abilities JSONB NOT NULL DEFAULT '[]',
	base_stats JSONB NOT NULL DEFAULT '{}',
	capture_rate BIGINT,
	base_happiness BIGINT,
	hatch_counter BIGINT,
	gender_rate BIGINT,
	is_legendary BOOLEAN NOT NULL DEFAULT FALSE,
	is_mythical BOOLEAN NOT NULL DEFAULT FALSE,
	is_baby BOOLEAN NOT NULL DEFAULT FALSE,
	regions JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS pokemon_slug_key ON pokemon (slug)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS pokemon_name_key ON pokemon (name)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS pokemon_poke_api_id_key ON pokemon (poke_api_id) WHERE poke_api_id IS NOT NULL`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts the record keyed on slug. On a unique violation of a
// secondary identity it walks the identity probes in order, updating the
// first existing row found; with no row under any probe the original
// conflict stands.
func (s *Postgres) Upsert(ctx context.Context, rec record.Record) (Result, error) {
	if rec.Slug == "" {
		return "", fmt.Errorf("record slug is required")
	}
	args, err := recordArgs(rec)
	if err != nil {
		return "", err
	}

	var inserted bool
	err = s.pool.QueryRow(ctx, upsertSQL(), args...).Scan(&inserted)
	if err == nil {
		if inserted {
			return Created, nil
		}
		return Updated, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return "", fmt.Errorf("upsert %s: %w", rec.Slug, err)
	}
	return s.upsertByIdentityProbes(ctx, rec, args, err)
}

// upsertByIdentityProbes handles the same logical entity arriving under
// a different slug: locate the existing row by a secondary key and
// replace it in full.
func (s *Postgres) upsertByIdentityProbes(ctx context.Context, rec record.Record, args []any, conflictErr error) (Result, error) {
	type probe struct {
		column string
		value  any
		usable bool
	}
	probes := []probe{
		{column: "name", value: rec.Name, usable: rec.Name != ""},
		{column: "poke_api_id", value: rec.PokeAPIID, usable: rec.PokeAPIID > 0},
	}

	for _, p := range probes {
		if !p.usable {
			continue
		}
		var id int64
		err := s.pool.QueryRow(ctx,
			fmt.Sprintf(`SELECT id FROM pokemon WHERE %s = $1`, p.column),
			p.value,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("probe %s for %s: %w", p.column, rec.Slug, err)
		}
		if _, err := s.pool.Exec(ctx, updateByIDSQL(), append(args, id)...); err != nil {
			return "", fmt.Errorf("update %s by %s: %w", rec.Slug, p.column, err)
		}
		s.logger.Debug("upsert resolved via identity probe",
			zap.String("slug", rec.Slug), zap.String("probe", p.column))
		return Updated, nil
	}

	return "", fmt.Errorf("upsert %s: %w", rec.Slug, conflictErr)
}

// Reset clears the destination table entirely.
func (s *Postgres) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE TABLE pokemon`); err != nil {
		return fmt.Errorf("reset pokemon table: %w", err)
	}
	return nil
}

// ListForCrySync returns cry-sync projections ordered by name.
func (s *Postgres) ListForCrySync(ctx context.Context, onlyMissing bool, limit int) ([]CryRow, error) {
	query := `SELECT id, slug, name, national_dex_number, cry_url FROM pokemon`
	if onlyMissing {
		query += ` WHERE cry_url = ''`
	}
	query += ` ORDER BY name`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list for cry sync: %w", err)
	}
	defer rows.Close()

	var out []CryRow
	for rows.Next() {
		var row CryRow
		if err := rows.Scan(&row.ID, &row.Slug, &row.Name, &row.NationalDexNumber, &row.CryURL); err != nil {
			return nil, fmt.Errorf("scan cry row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list for cry sync: %w", err)
	}
	return out, nil
}

// UpdateCryURL replaces the cry URL of one row.
func (s *Postgres) UpdateCryURL(ctx context.Context, id int64, cryURL string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE pokemon SET cry_url = $1, updated_at = now() WHERE id = $2`,
		cryURL, id,
	); err != nil {
		return fmt.Errorf("update cry url for %d: %w", id, err)
	}
	return nil
}

// ListRegions returns every row with at least one region membership.
func (s *Postgres) ListRegions(ctx context.Context) ([]RegionRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, regions FROM pokemon WHERE jsonb_array_length(regions) > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	var out []RegionRow
	for rows.Next() {
		var (
			row RegionRow
			raw []byte
		)
		if err := rows.Scan(&row.ID, &raw); err != nil {
			return nil, fmt.Errorf("scan region row: %w", err)
		}
		if err := json.Unmarshal(raw, &row.Regions); err != nil {
			return nil, fmt.Errorf("decode regions for %d: %w", row.ID, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return out, nil
}

// UpdateRegions replaces the region memberships of one row.
func (s *Postgres) UpdateRegions(ctx context.Context, id int64, regions []record.RegionMembership) error {
	payload, err := json.Marshal(regions)
	if err != nil {
		return fmt.Errorf("marshal regions for %d: %w", id, err)
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE pokemon SET regions = $1, updated_at = now() WHERE id = $2`,
		payload, id,
	); err != nil {
		return fmt.Errorf("update regions for %d: %w", id, err)
	}
	return nil
}

func upsertSQL() string {
	placeholders := make([]string, len(recordColumns))
	updates := make([]string, len(recordColumns))
	for i, col := range recordColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		updates[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	return fmt.Sprintf(
		`INSERT INTO pokemon (%s) VALUES (%s) ON CONFLICT (slug) DO UPDATE SET %s, updated_at = now() RETURNING (xmax = 0) AS inserted`,
		strings.Join(recordColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

func updateByIDSQL() string {
	assignments := make([]string, len(recordColumns))
	for i, col := range recordColumns {
		assignments[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	return fmt.Sprintf(
		`UPDATE pokemon SET %s, updated_at = now() WHERE id = $%d`,
		strings.Join(assignments, ", "),
		len(recordColumns)+1,
	)
}

// recordArgs flattens a record into the recordColumns parameter order.
func recordArgs(rec record.Record) ([]any, error) {
	abilities, err := json.Marshal(rec.Abilities)
	if err != nil {
		return nil, fmt.Errorf("marshal abilities for %s: %w", rec.Slug, err)
	}
	baseStats, err := json.Marshal(rec.BaseStats)
	if err != nil {
		return nil, fmt.Errorf("marshal base stats for %s: %w", rec.Slug, err)
	}
	regions, err := json.Marshal(rec.Regions)
	if err != nil {
		return nil, fmt.Errorf("marshal regions for %s: %w", rec.Slug, err)
	}

	return []any{
		nullablePositive(rec.PokeAPIID),
		rec.NationalDexNumber,
		rec.Slug,
		rec.Name,
		rec.DisplayName,
		rec.ImageURL,
		rec.SpriteURL,
		rec.CryURL,
		rec.Description,
		rec.Height,
		rec.Weight,
		rec.BaseExperience,
		rec.Generation,
		rec.Habitat,
		rec.Shape,
		rec.Color,
		rec.GrowthRate,
		rec.EggGroups,
		rec.Types,
		abilities,
		baseStats,
		rec.CaptureRate,
		rec.BaseHappiness,
		rec.HatchCounter,
		rec.GenderRate,
		rec.IsLegendary,
		rec.IsMythical,
		rec.IsBaby,
		regions,
	}, nil
}

// nullablePositive maps non-positive identifiers to NULL so the sparse
// unique index on poke_api_id ignores them.
func nullablePositive(v int) any {
	if v > 0 {
		return v
	}
	return nil
}
