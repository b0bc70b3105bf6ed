package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/metrics"
	"github.com/pokedexfr/ingest/internal/region"
)

// RegionFixSummary is the outcome of one region repair pass.
type RegionFixSummary struct {
	Scanned        int `json:"scanned"`
	UpdatedRecords int `json:"updatedRecords"`
	UpdatedRegions int `json:"updatedRegions"`
}

// FixRegions re-resolves every stored region membership in place,
// replacing stale sentinel labels and filling in missing map images.
func (o *Orchestrator) FixRegions(ctx context.Context) (RegionFixSummary, error) {
	rows, err := o.store.ListRegions(ctx)
	if err != nil {
		metrics.ObserveRun("regions", "failed")
		return RegionFixSummary{}, fmt.Errorf("list region memberships: %w", err)
	}

	var summary RegionFixSummary
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			metrics.ObserveRun("regions", "failed")
			return summary, err
		}
		summary.Scanned++

		changed := false
		for i := range row.Regions {
			membership := &row.Regions[i]
			previousName := strings.TrimSpace(membership.RegionName)
			previousImage := strings.TrimSpace(membership.RegionImageURL)

			nextName := region.ResolveName(previousName, membership.RegionPokedexNumber)
			if nextName == "" {
				nextName = previousName
			}
			nextImage := previousImage
			if nextImage == "" {
				nextImage = region.ResolveImageURL(nextName, membership.RegionPokedexNumber)
			}

			if nextName != previousName || nextImage != previousImage {
				membership.RegionName = nextName
				membership.RegionImageURL = nextImage
				summary.UpdatedRegions++
				changed = true
			}
		}

		if changed {
			if err := o.store.UpdateRegions(ctx, row.ID, row.Regions); err != nil {
				metrics.ObserveRun("regions", "failed")
				return summary, fmt.Errorf("update regions for %d: %w", row.ID, err)
			}
			summary.UpdatedRecords++
		}
	}

	o.logger.Info("region fix finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("updated_records", summary.UpdatedRecords),
		zap.Int("updated_regions", summary.UpdatedRegions),
	)
	metrics.ObserveRun("regions", "ok")
	return summary, nil
}
