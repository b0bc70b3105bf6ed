package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/ingest"
)

// newSyncCriesCmd creates the 'sync-cries' subcommand, which backfills
// cry audio URLs for records missing one.
func newSyncCriesCmd() *cobra.Command {
	var (
		force bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "sync-cries",
		Short: "Resolves and stores cry audio URLs for existing records",
		Long: `Walks the stored records that have no cry audio URL, resolves one from
the community wiki and writes it back. With --force every record is
revisited, replacing stale URLs.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			summary, err := appInstance.Orchestrator.SyncCries(cmd.Context(), ingest.CrySyncOptions{
				Force: force,
				Limit: limit,
			})
			if err != nil {
				return fmt.Errorf("cry sync run: %w", err)
			}

			appInstance.Logger.Info("Cry sync command finished.",
				zap.Int("scanned", summary.Scanned),
				zap.Int("updated", summary.Updated),
				zap.Int("missing", summary.Missing),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "revisit every record, not only those missing a cry URL")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records to process (0 means all)")

	return cmd
}
