package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/aggregate"
	"github.com/jwseok/lotto645-harvester/internal/api"
	"github.com/jwseok/lotto645-harvester/internal/app"
	"github.com/jwseok/lotto645-harvester/internal/clock"
	"github.com/jwseok/lotto645-harvester/internal/config"
	"github.com/jwseok/lotto645-harvester/internal/draw"
	"github.com/jwseok/lotto645-harvester/internal/progress/sinks"
	"github.com/jwseok/lotto645-harvester/internal/rounds"
	"github.com/jwseok/lotto645-harvester/internal/storage/snapshot"
)

var (
	cfgFile string
	devMode bool
	outDir  string
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows us to
// inject a mock app during tests.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Registry() *prometheus.Registry
	Resolver() rounds.Resolver
	Snapshots() *snapshot.Store
	Reports() *sinks.Collector
	Clock() clock.Clock
	Resolve(ctx context.Context, hint draw.Round) (rounds.Resolution, error)
	Run(ctx context.Context, opts app.RunOptions) (*aggregate.Snapshot, error)
	StartHarvest(ctx context.Context, req api.HarvestRequest) (string, error)
}

// newApp is the application factory. It is a variable so tests can replace
// it with a mock factory.
var newApp = func(cfg config.Config) (App, error) {
	return app.New(cfg, 0)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lotto645-harvester",
		Short: "Harvests 6/45 lottery draw data into snapshots.",
		Long: `lotto645-harvester discovers the newest published draw round, walks the
winner-store listings for a window of rounds, and folds the results into
per-round and per-region snapshots. It runs as a one-shot CLI or as an
HTTP service.`,

		// Runs after flags are parsed but before the subcommand's RunE; the
		// right place to build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if devMode {
				cfg.Logging.Development = true
			}
			if outDir != "" {
				cfg.Snapshot.Dir = outDir
			}

			appInstance, err := newApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// Ensures services shut down gracefully and the progress hub drains.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	cmd.PersistentFlags().BoolVar(&devMode, "dev", false, "enable development logging")

	cmd.AddCommand(newHarvestCmd(), newResolveCmd(), newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
