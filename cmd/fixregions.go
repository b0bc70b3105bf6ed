package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newFixRegionsCmd creates the 'fix-regions' subcommand, which rewrites
// placeholder region memberships left by earlier seed runs.
func newFixRegionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix-regions",
		Short: "Resolves placeholder region names on stored records",
		Long: `Scans records carrying region memberships and replaces unresolved
region names with the canonical region for their dex number. Region
images are filled in where missing.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			summary, err := appInstance.Orchestrator.FixRegions(cmd.Context())
			if err != nil {
				return fmt.Errorf("region fix run: %w", err)
			}

			appInstance.Logger.Info("Region fix command finished.",
				zap.Int("scanned", summary.Scanned),
				zap.Int("updated_records", summary.UpdatedRecords),
				zap.Int("updated_regions", summary.UpdatedRegions),
			)
			return nil
		},
	}

	return cmd
}
