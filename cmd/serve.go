package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/api"
)

// newServeCmd creates and configures the 'serve' subcommand. It hosts the
// HTTP API until interrupted.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the harvester HTTP API",
		Long: `Starts the HTTP server exposing snapshots, round resolution, run reports,
harvest triggering, and Prometheus metrics. The server shuts down
gracefully on SIGINT or SIGTERM.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			cfg := appInstance.Config()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			server := api.NewServer(
				appInstance.Resolver(),
				appInstance.Snapshots(),
				appInstance.Reports(),
				appInstance,
				appInstance.Registry(),
				appInstance.Clock(),
				appInstance.Logger(),
				cfg,
			)
			httpServer := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				appInstance.Logger().Info("http server listening",
					zap.String("addr", cfg.Server.Addr))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
			case <-ctx.Done():
				appInstance.Logger().Info("shutting down http server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
