package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/ingest"
)

// newSeedCmd creates the 'seed' subcommand, which runs one full catalog
// ingestion pass. Flags override the configured run defaults.
func newSeedCmd() *cobra.Command {
	var (
		limit       int
		offset      int
		concurrency int
		retries     int
		reset       bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Ingests the full catalog into the database",
		Long: `Lists every entry in the source catalog, fetches and normalizes each
one concurrently and upserts the resulting records. Individual item
failures are counted and logged without aborting the run.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			cfg := appInstance.Config.Seed
			opts := ingest.Options{
				Limit:         cfg.Limit,
				Offset:        cfg.Offset,
				Concurrency:   cfg.Concurrency,
				ProgressEvery: cfg.ProgressEvery,
				Reset:         reset,
			}
			if cmd.Flags().Changed("limit") {
				opts.Limit = limit
			}
			if cmd.Flags().Changed("offset") {
				opts.Offset = offset
			}
			if cmd.Flags().Changed("concurrency") {
				opts.Concurrency = concurrency
			}
			if cmd.Flags().Changed("retries") {
				opts.Retries = &retries
			}

			summary, err := appInstance.Orchestrator.Seed(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("seed run: %w", err)
			}

			appInstance.Logger.Info("Seed command finished.",
				zap.Int("scanned", summary.Scanned),
				zap.Int("created", summary.Created),
				zap.Int("updated", summary.Updated),
				zap.Int("failed", summary.Failed),
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of catalog entries to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of catalog entries to skip")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent ingestion workers")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry budget per upstream request for this run")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the destination table before ingesting")

	return cmd
}
