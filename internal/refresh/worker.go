// Package refresh serves the engine's snapshot refresh requests by
// fetching single items from the Universalis REST API.
package refresh

import (
	"context"
	"log/slog"

	"github.com/ffxivarb/gilarb/internal/bus"
	"github.com/ffxivarb/gilarb/internal/domain"
)

// Fetcher fetches current market snapshots for a set of items.
type Fetcher interface {
	Fetch(ctx context.Context, ids []domain.ItemID) ([]domain.MarketSnapshot, error)
}

// Worker consumes refresh requests, fetches the item's current
// snapshot, and hands the result back to the engine. A failed fetch is
// logged and skipped; the engine keeps serving the stale snapshot until
// the next request for that item succeeds.
type Worker struct {
	fetcher Fetcher
	bus     *bus.Bus
	logger  *slog.Logger
}

// New creates a refresh Worker.
func New(fetcher Fetcher, b *bus.Bus, logger *slog.Logger) *Worker {
	return &Worker{
		fetcher: fetcher,
		bus:     b,
		logger:  logger.With(slog.String("component", "refresh")),
	}
}

// Run serves refresh requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("refresh worker started")
	defer w.logger.Info("refresh worker stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-w.bus.RefreshRequests:
			w.serve(ctx, req)
		}
	}
}

func (w *Worker) serve(ctx context.Context, req domain.RefreshRequest) {
	snaps, err := w.fetcher.Fetch(ctx, []domain.ItemID{req.Item})
	if err != nil {
		w.logger.Warn("snapshot refresh failed",
			slog.Int("item", int(req.Item)),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(snaps) == 0 {
		w.logger.Warn("snapshot refresh returned no data", slog.Int("item", int(req.Item)))
		return
	}

	select {
	case w.bus.RefreshResults <- domain.SnapshotUpdate{Snapshots: snaps}:
	case <-ctx.Done():
	}
}
