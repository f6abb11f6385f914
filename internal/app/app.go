// Package app provides the top-level application lifecycle for the
// market watcher. It wires together the external backends, the event
// bus, and the pipeline workers, then supervises them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ffxivarb/gilarb/internal/board"
	"github.com/ffxivarb/gilarb/internal/bus"
	"github.com/ffxivarb/gilarb/internal/config"
	"github.com/ffxivarb/gilarb/internal/domain"
	"github.com/ffxivarb/gilarb/internal/engine"
	"github.com/ffxivarb/gilarb/internal/naming"
	"github.com/ffxivarb/gilarb/internal/notify"
	"github.com/ffxivarb/gilarb/internal/persist"
	"github.com/ffxivarb/gilarb/internal/ratelimit"
	"github.com/ffxivarb/gilarb/internal/refresh"
	"github.com/ffxivarb/gilarb/internal/universalis"
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, warms the snapshot cache, and starts the
// pipeline workers. It blocks until the context is cancelled or a worker
// fails fatally.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("persistence", a.cfg.Postgres.Enabled()),
		slog.Bool("price_cache", a.cfg.Redis.Enabled()),
		slog.Bool("archival", a.cfg.S3.Enabled()),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	worldTable, worldIDs, err := a.cfg.WorldTable()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	names := naming.NewResolver(a.cfg.Naming.ItemsURL, worldTable, a.logger)

	restClient := universalis.NewClient(universalis.ClientConfig{
		RestHost:      a.cfg.Universalis.RestHost,
		Region:        a.cfg.Universalis.Region,
		Limiter:       ratelimit.New(a.cfg.Universalis.RequestsPerSecond),
		FetchRateCost: a.cfg.Universalis.FetchRateCost,
		Logger:        a.logger,
	})

	// Warm the snapshot cache before any streaming event can arrive.
	cache, err := board.LoadOrRebuild(ctx,
		a.cfg.Board.CachePath,
		a.cfg.Board.MaxAge.Duration,
		restClient,
		a.logger,
	)
	if err != nil {
		return fmt.Errorf("app: warm snapshot cache: %w", err)
	}

	b := bus.New(a.cfg.Bus.QueueSize)

	dispatcher := notify.NewDispatcher(
		deps.Sender,
		ratelimit.New(a.cfg.Notify.RequestsPerSecond),
		a.cfg.Notify.DedupWindow,
		a.logger,
	)

	var buf *persist.Buffer
	if deps.SaleStore != nil {
		buf = persist.New(deps.SaleStore, a.cfg.Postgres.BufferSize, a.logger)
	}

	eng := engine.New(
		engine.Config{
			HomeWorld:       domain.WorldID(a.cfg.Arbitrage.HomeWorld),
			SellTax:         a.cfg.Arbitrage.SellTax,
			BuyTax:          a.cfg.Arbitrage.BuyTax,
			ProfitThreshold: a.cfg.Arbitrage.ProfitThreshold,
		},
		cache, b, dispatcher, buf, deps.PriceCache, names, a.logger,
	)

	ingestor := universalis.NewIngestor(universalis.IngestorConfig{
		Addr:   a.cfg.Universalis.WsAddr,
		Worlds: worldIDs,
		Out:    b.Ingest,
		Logger: a.logger,
	})

	worker := refresh.New(restClient, b, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingestor.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return eng.Run(gctx) })
	if deps.Archiver != nil {
		g.Go(func() error { return a.runArchiver(gctx, deps.Archiver) })
	}

	return g.Wait()
}

// archiveRunner is the slice of the archiver the supervision loop needs.
type archiveRunner interface {
	ArchiveSales(ctx context.Context, before time.Time) (int64, error)
}

// runArchiver periodically moves sale rows older than the retention
// window to cold storage. Archive failures are logged and retried on
// the next tick.
func (a *App) runArchiver(ctx context.Context, archiver archiveRunner) error {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			if _, err := archiver.ArchiveSales(ctx, cutoff); err != nil {
				a.logger.Warn("sale archival failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is
// safe to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
