// Package app initializes and holds long-lived application services, acting
// as a dependency injection container, and orchestrates harvest runs.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/aggregate"
	"github.com/jwseok/lotto645-harvester/internal/api"
	"github.com/jwseok/lotto645-harvester/internal/clock"
	"github.com/jwseok/lotto645-harvester/internal/clock/system"
	"github.com/jwseok/lotto645-harvester/internal/config"
	"github.com/jwseok/lotto645-harvester/internal/draw"
	"github.com/jwseok/lotto645-harvester/internal/fetch"
	"github.com/jwseok/lotto645-harvester/internal/harvest"
	"github.com/jwseok/lotto645-harvester/internal/id/uuid"
	"github.com/jwseok/lotto645-harvester/internal/locate"
	"github.com/jwseok/lotto645-harvester/internal/logging"
	"github.com/jwseok/lotto645-harvester/internal/normalize"
	"github.com/jwseok/lotto645-harvester/internal/progress"
	"github.com/jwseok/lotto645-harvester/internal/progress/sinks"
	"github.com/jwseok/lotto645-harvester/internal/rounds"
	"github.com/jwseok/lotto645-harvester/internal/source"
	"github.com/jwseok/lotto645-harvester/internal/storage/snapshot"
)

// App holds all the shared, long-lived services for the application. It is
// initialized once at startup and passed to the commands that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    clock.Clock
	registry *prometheus.Registry

	fetcher   fetch.Fetcher
	endpoints source.Endpoints

	prober   *rounds.FeedProber
	pageHint rounds.Resolver
	schedule rounds.Resolver
	resolver rounds.Resolver

	locator      *locate.Locator
	normalizer   *normalize.Normalizer
	profiles     map[draw.Tier]locate.Profile
	onlineCode   string
	unclassified string

	hub       *progress.Hub
	collector *sinks.Collector
	snapshots *snapshot.Store
	idGen     *uuid.Generator

	running atomic.Bool
}

// New wires all services from configuration. hint seeds round discovery; zero
// lets the page-hint strategy supply the seed. It fails fast if any service
// cannot be initialized.
func New(cfg config.Config, hint int) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	clk := system.New()
	registry := prometheus.NewRegistry()

	fetcher, err := fetch.NewClient(fetch.Config{
		Timeout:     cfg.HTTP.Timeout,
		UserAgent:   cfg.HTTP.UserAgent,
		Rate:        cfg.HTTP.Rate,
		Burst:       cfg.HTTP.Burst,
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize fetch client: %w", err)
	}

	endpoints := source.NewEndpoints(cfg.Source.PrimaryHost, cfg.Source.SecondaryHost)
	prober := rounds.NewFeedProber(fetcher, endpoints)
	pageHint := rounds.NewPageHintResolver(fetcher, endpoints)
	schedule := rounds.NewScheduleResolver(clk)
	probe := rounds.NewProbeResolver(prober, hint, pageHint, cfg.Resolver.Ceiling, logger)
	resolver := rounds.NewChain(probe, schedule, cfg.Resolver.Tolerance, logger)

	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("initialize prometheus sink: %w", err)
	}
	collector := sinks.NewCollector()
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger), promSink, collector)

	snapshots, err := snapshot.New(snapshot.Config{Dir: cfg.Snapshot.Dir})
	if err != nil {
		return nil, fmt.Errorf("initialize snapshot store: %w", err)
	}

	normCfg := normalize.DefaultConfig()

	return &App{
		cfg:          cfg,
		logger:       logger,
		clock:        clk,
		registry:     registry,
		fetcher:      fetcher,
		endpoints:    endpoints,
		prober:       prober,
		pageHint:     pageHint,
		schedule:     schedule,
		resolver:     resolver,
		locator:      locate.NewLocator(logger),
		normalizer:   normalize.New(normCfg),
		profiles:     locate.DefaultProfiles(),
		onlineCode:   normCfg.OnlineCode,
		unclassified: normCfg.UnclassifiedCode,
		hub:          hub,
		collector:    collector,
		snapshots:    snapshots,
		idGen:        uuid.NewUUIDGenerator(),
	}, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Registry exposes the metrics registry for the /metrics endpoint.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Resolver exposes the round resolver chain.
func (a *App) Resolver() rounds.Resolver { return a.resolver }

// Snapshots exposes the snapshot store.
func (a *App) Snapshots() *snapshot.Store { return a.snapshots }

// Reports exposes the in-memory run report collector.
func (a *App) Reports() *sinks.Collector { return a.collector }

// Clock exposes the shared time source.
func (a *App) Clock() clock.Clock { return a.clock }

// Resolve discovers the newest round, optionally seeded by a caller hint.
func (a *App) Resolve(ctx context.Context, hint draw.Round) (rounds.Resolution, error) {
	return a.resolverFor(hint).Resolve(ctx)
}

// RunOptions selects what one harvest run covers. Rounds takes precedence;
// with no rounds the run covers Window rounds back from the newest. Hint
// seeds round discovery for this run only.
type RunOptions struct {
	Rounds []draw.Round
	Window int
	Hint   draw.Round
}

// Run executes one harvest synchronously and returns the persisted snapshot.
func (a *App) Run(ctx context.Context, opts RunOptions) (*aggregate.Snapshot, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, api.ErrBusy
	}
	defer a.running.Store(false)

	runID, err := a.idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	return a.run(ctx, runID, opts)
}

// StartHarvest launches a run asynchronously and returns its run ID. It
// implements the API trigger; progress is observable through run reports.
func (a *App) StartHarvest(_ context.Context, req api.HarvestRequest) (string, error) {
	if !a.running.CompareAndSwap(false, true) {
		return "", api.ErrBusy
	}
	runID, err := a.idGen.NewID()
	if err != nil {
		a.running.Store(false)
		return "", fmt.Errorf("generate run id: %w", err)
	}

	opts := RunOptions{Rounds: req.Rounds, Window: req.Window, Hint: req.Hint}
	go func() {
		defer a.running.Store(false)
		// Detached from the request context; the run outlives the HTTP call.
		ctx := context.Background()
		if _, err := a.run(ctx, runID, opts); err != nil {
			a.logger.Error("triggered harvest failed",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}()
	return runID, nil
}

func (a *App) run(ctx context.Context, runID string, opts RunOptions) (*aggregate.Snapshot, error) {
	start := a.clock.Now()
	a.emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageRunStart})

	res, err := a.resolverFor(opts.Hint).Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve latest round: %w", err)
	}
	a.emit(progress.Event{
		RunID:    runID,
		TS:       a.clock.Now(),
		Stage:    progress.StageResolveDone,
		Round:    int(res.Round),
		Deviated: res.Deviated,
		Note:     res.Strategy,
	})

	window := a.windowFor(opts, res.Round)
	units := unitsFor(window)

	deadline := time.Time{}
	if a.cfg.Harvest.Budget > 0 {
		deadline = start.Add(a.cfg.Harvest.Budget)
	}
	pages := harvest.NewSectionSource(
		a.fetcher, a.endpoints, a.locator, a.normalizer, a.profiles, a.hub, runID)
	// The second tier is published unpaginated; one page is all there is.
	tierCeilings := map[draw.Tier]int{draw.TierSecond: 1}
	harvester := harvest.New(pages, harvest.Options{
		PageLimit:      a.cfg.Harvest.PageLimit,
		TierPageLimits: tierCeilings,
		RecordLimit:    a.cfg.Harvest.RecordLimit,
		Delay:          a.cfg.Harvest.Delay,
		Deadline:       deadline,
	}, a.logger)
	pool := harvest.NewPool(
		harvester, a.cfg.Harvest.Workers, a.cfg.Harvest.QueueDepth, a.hub, runID, a.logger)

	results := pool.Run(ctx, units)

	agg := aggregate.New(a.onlineCode, a.unclassified)
	failures := make([]draw.Failure, 0)
	for _, unitRes := range results {
		agg.FoldAll(unitRes.Records)
		if unitRes.Err != nil {
			failures = append(failures, draw.Failure{
				Unit:   unitRes.Unit.ID(),
				Reason: unitRes.Err.Error(),
			})
		}
	}

	a.foldDraws(ctx, agg, window)
	heatmap := a.buildHeatmap(ctx, res.Round)

	snap := agg.Snapshot(aggregate.Meta{
		RunID:       runID,
		LatestRound: res.Round,
		Window:      window,
		GeneratedAt: a.clock.Now(),
		Processed:   len(results),
		Failures:    failures,
	}, heatmap)

	path, err := a.snapshots.Save(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	a.logger.Info("snapshot saved",
		zap.String("run_id", runID),
		zap.String("path", path),
		zap.Int("rounds", len(window)),
		zap.Int("failures", len(failures)))

	a.emit(progress.Event{
		RunID: runID,
		TS:    a.clock.Now(),
		Stage: progress.StageRunDone,
		Dur:   a.clock.Now().Sub(start),
	})
	return snap, nil
}

// resolverFor builds a run-scoped chain when the caller supplied a hint;
// otherwise the shared chain is reused.
func (a *App) resolverFor(hint draw.Round) rounds.Resolver {
	if hint <= 0 {
		return a.resolver
	}
	probe := rounds.NewProbeResolver(
		a.prober, int(hint), a.pageHint, a.cfg.Resolver.Ceiling, a.logger)
	return rounds.NewChain(probe, a.schedule, a.cfg.Resolver.Tolerance, a.logger)
}

// windowFor selects the rounds a run covers, oldest first.
func (a *App) windowFor(opts RunOptions, latest draw.Round) []draw.Round {
	if len(opts.Rounds) > 0 {
		return append([]draw.Round(nil), opts.Rounds...)
	}
	size := opts.Window
	if size <= 0 {
		size = a.cfg.Harvest.Window
	}
	if size <= 0 {
		size = 1
	}
	first := latest - draw.Round(size) + 1
	if first < 1 {
		first = 1
	}
	window := make([]draw.Round, 0, int(latest-first)+1)
	for round := first; round <= latest; round++ {
		window = append(window, round)
	}
	return window
}

func unitsFor(window []draw.Round) []harvest.Unit {
	units := make([]harvest.Unit, 0, len(window)*2)
	for _, round := range window {
		units = append(units,
			harvest.Unit{Round: round, Tier: draw.TierFirst},
			harvest.Unit{Round: round, Tier: draw.TierSecond})
	}
	return units
}

// foldDraws attaches each round's draw result and prize breakdown to the
// aggregate. Failures here degrade the snapshot instead of failing the run.
func (a *App) foldDraws(ctx context.Context, agg *aggregate.Aggregator, window []draw.Round) {
	for _, round := range window {
		res, err := a.prober.Probe(ctx, int(round))
		if err != nil {
			a.logger.Warn("draw result unavailable",
				zap.Int("round", int(round)), zap.Error(err))
		} else {
			agg.FoldResult(res)
		}

		prizes, err := a.harvestPrizes(ctx, round)
		if err != nil {
			a.logger.Warn("prize breakdown unavailable",
				zap.Int("round", int(round)), zap.Error(err))
			continue
		}
		agg.FoldPrizes(round, prizes)
	}
}

// harvestPrizes extracts the per-rank prize table from a round's result page.
func (a *App) harvestPrizes(ctx context.Context, round draw.Round) ([]draw.PrizeTier, error) {
	hosts := a.endpoints.Hosts()
	req := fetch.Request{URL: a.endpoints.Results(hosts[0], int(round))}
	if len(hosts) > 1 {
		req.AltURL = a.endpoints.Results(hosts[1], int(round))
	}
	doc, err := a.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch result page: %w", err)
	}
	parsed, err := locate.Parse(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}
	table, err := a.locator.Locate(parsed, locate.PrizeProfile())
	if err != nil {
		return nil, err
	}
	prizes := make([]draw.PrizeTier, 0, len(table.Rows))
	for _, row := range table.Rows {
		if tier, ok := normalize.ParsePrizeRow(row); ok {
			prizes = append(prizes, tier)
		}
	}
	return prizes, nil
}

// buildHeatmap probes the trailing window of draw results for number
// frequencies. Rounds that cannot be probed are skipped with a warning.
func (a *App) buildHeatmap(ctx context.Context, latest draw.Round) *aggregate.Heatmap {
	window := a.cfg.Heatmap.Window
	if window <= 0 {
		return nil
	}
	first := int(latest) - window + 1
	if first < 1 {
		first = 1
	}
	results := make([]draw.Result, 0, window)
	for round := first; round <= int(latest); round++ {
		res, err := a.prober.Probe(ctx, round)
		if err != nil {
			a.logger.Warn("heatmap round skipped",
				zap.Int("round", round), zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return aggregate.BuildHeatmap(results, window)
}

func (a *App) emit(evt progress.Event) {
	a.hub.Emit(evt)
}

// Close gracefully shuts down services: the progress hub is drained so every
// sink sees the final events, then the logger is flushed.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("error draining progress hub", zap.Error(err))
	}
	// Best effort; stderr sync fails on some platforms.
	_ = a.logger.Sync()
}
