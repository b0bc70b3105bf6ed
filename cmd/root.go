// Package cmd defines and implements the CLI commands for the dexingest
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/app"
	"github.com/pokedexfr/ingest/internal/config"
	"github.com/pokedexfr/ingest/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType struct{}

var appKey appKeyType

// newApp is the application factory. It is a variable so tests can
// replace it with a factory producing fakes.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command. Configuration is
// loaded and the service graph built once here, before any subcommand
// runs.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dexingest",
		Short: "Catalog ingestion and enrichment pipeline for the pokédex service.",
		Long: `dexingest seeds the pokédex database from the public catalog API,
normalizes every entry into a canonical record and enriches records with
cry audio resolved from the community wiki. It runs either as one-shot
commands or as a long-lived admin server.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logging.InitLogger(cfg.Logging.Development)

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (defaults plus DEXINGEST_* environment variables apply without one)")

	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newSyncCriesCmd())
	cmd.AddCommand(newFixRegionsCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// resolveApp retrieves the application services placed in the context by
// the root command's PersistentPreRunE hook.
func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. It wires OS signals into the command
// context so a SIGINT or SIGTERM cancels the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
