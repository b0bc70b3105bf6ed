package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/api"
)

const shutdownGrace = 10 * time.Second

// newServeCmd creates the 'serve' subcommand, which exposes the admin
// HTTP API for triggering and inspecting runs.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the admin HTTP server",
		Long: `Starts the long-lived admin server. Runs are triggered over HTTP and
execute asynchronously; their progress is queried by run id. The server
also exposes health and Prometheus metrics endpoints.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			apiServer := api.NewServer(appInstance.Orchestrator, appInstance.Store, appInstance.Config, appInstance.Logger)
			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", appInstance.Config.Server.Port),
				Handler:           apiServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				appInstance.Logger.Info("admin server listening", zap.String("addr", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
					return
				}
				errCh <- nil
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("admin server: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			appInstance.Logger.Info("shutting down admin server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown admin server: %w", err)
			}
			return <-errCh
		},
	}

	return cmd
}
