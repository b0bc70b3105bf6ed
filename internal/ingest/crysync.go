package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/metrics"
)

// CrySyncOptions parameterizes one cry re-sync pass.
type CrySyncOptions struct {
	// Force revisits rows that already carry a cry URL.
	Force bool
	// Limit bounds the number of rows visited. <= 0 means all.
	Limit int
}

// CrySyncSummary is the outcome of one cry re-sync pass.
type CrySyncSummary struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Missing int `json:"missing"`
}

// SyncCries walks stored records in name order and refreshes their cry
// URLs through the resolver. Rows the resolver finds nothing for are
// counted as missing and left untouched.
func (o *Orchestrator) SyncCries(ctx context.Context, opts CrySyncOptions) (CrySyncSummary, error) {
	if o.cries == nil {
		return CrySyncSummary{}, fmt.Errorf("no cry resolver configured")
	}

	rows, err := o.store.ListForCrySync(ctx, !opts.Force, opts.Limit)
	if err != nil {
		metrics.ObserveRun("cries", "failed")
		return CrySyncSummary{}, fmt.Errorf("list records for cry sync: %w", err)
	}

	var summary CrySyncSummary
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			metrics.ObserveRun("cries", "failed")
			return summary, err
		}
		summary.Scanned++

		cryURL := o.cries.Resolve(ctx, baseName(row.Name))
		if cryURL == "" {
			summary.Missing++
			continue
		}
		if strings.TrimSpace(row.CryURL) == cryURL {
			continue
		}
		if err := o.store.UpdateCryURL(ctx, row.ID, cryURL); err != nil {
			metrics.ObserveRun("cries", "failed")
			return summary, fmt.Errorf("update cry for %s: %w", row.Slug, err)
		}
		summary.Updated++
		o.logger.Debug("cry updated", zap.String("slug", row.Slug), zap.String("url", cryURL))
	}

	o.logger.Info("cry sync finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("updated", summary.Updated),
		zap.Int("missing", summary.Missing),
	)
	metrics.ObserveRun("cries", "ok")
	return summary, nil
}

// baseName strips the parenthesized form suffix from a stored display
// name ("Pikachu (Gmax)" → "Pikachu") so both ingestion passes resolve
// a record's cry under the same title.
func baseName(name string) string {
	if idx := strings.Index(name, " ("); idx > 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}
