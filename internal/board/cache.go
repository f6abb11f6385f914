// Package board maintains the in-memory market-board snapshot cache and
// its disk-backed staleness control.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// rebuildBatchSize is the number of item ids fetched per bulk request
// during a full rebuild; it matches the bulk endpoint's request cap.
const rebuildBatchSize = 100

// Fetcher is the slice of the REST client the cache needs for rebuilds.
type Fetcher interface {
	Fetch(ctx context.Context, ids []domain.ItemID) ([]domain.MarketSnapshot, error)
	Marketable(ctx context.Context) ([]domain.ItemID, error)
}

// Cache maps item ids to their latest market snapshot. After
// construction it is owned exclusively by the arbitrage engine
// goroutine; no internal locking is provided or needed.
type Cache struct {
	snapshots map[domain.ItemID]domain.MarketSnapshot
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{snapshots: make(map[domain.ItemID]domain.MarketSnapshot)}
}

// Get returns the snapshot for an item, or domain.ErrNotFound when the
// item has never been cached. Callers treat absence as a data-integrity
// warning, not a crash.
func (c *Cache) Get(id domain.ItemID) (domain.MarketSnapshot, error) {
	snap, ok := c.snapshots[id]
	if !ok {
		return domain.MarketSnapshot{}, fmt.Errorf("board: item %d: %w", id, domain.ErrNotFound)
	}
	return snap, nil
}

// Put replaces the prior snapshot for the item wholesale; entries are
// never partially merged.
func (c *Cache) Put(snap domain.MarketSnapshot) {
	c.snapshots[snap.ItemID] = snap
}

// MinPrice returns the minimum per-unit price among the item's listings
// matching world and quality, or 0 when no listing matches (including
// when the item itself is uncached).
func (c *Cache) MinPrice(id domain.ItemID, world domain.WorldID, hq bool) int64 {
	snap, ok := c.snapshots[id]
	if !ok {
		return 0
	}
	return snap.MinListing(world, hq)
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	return len(c.snapshots)
}

// LoadOrRebuild returns a populated cache. If the disk blob at path is
// younger than maxAge it is deserialized and returned; otherwise the
// whole marketable universe is refetched in batches and the result is
// persisted before returning. A cancelled rebuild returns an empty
// cache together with the context error, never a partial cache.
func LoadOrRebuild(ctx context.Context, path string, maxAge time.Duration, fetcher Fetcher, logger *slog.Logger) (*Cache, error) {
	logger = logger.With(slog.String("component", "board"))

	if cache, err := loadDisk(path, maxAge); err == nil {
		logger.Info("loaded market board from disk cache",
			slog.String("path", path),
			slog.Int("items", cache.Len()),
		)
		return cache, nil
	} else if !errors.Is(err, errCacheStale) {
		logger.Warn("disk cache unusable, rebuilding",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	logger.Info("market board is out of date, rebuilding from upstream (this can take several minutes)")

	cache, err := rebuild(ctx, fetcher, logger)
	if err != nil {
		return NewCache(), err
	}

	if err := saveDisk(path, cache); err != nil {
		// The blob is an optimization; losing it only costs the next
		// startup a rebuild.
		logger.Warn("failed to persist market board cache",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	return cache, nil
}

// rebuild fetches the entire marketable-item universe in batches.
func rebuild(ctx context.Context, fetcher Fetcher, logger *slog.Logger) (*Cache, error) {
	ids, err := fetcher.Marketable(ctx)
	if err != nil {
		return nil, fmt.Errorf("board: list marketable items: %w", err)
	}

	cache := NewCache()
	total := (len(ids) + rebuildBatchSize - 1) / rebuildBatchSize
	for i := 0; i < len(ids); i += rebuildBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + rebuildBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		snaps, err := fetcher.Fetch(ctx, ids[i:end])
		if err != nil {
			return nil, fmt.Errorf("board: rebuild batch %d/%d: %w", i/rebuildBatchSize+1, total, err)
		}
		for _, snap := range snaps {
			cache.Put(snap)
		}

		if batch := i/rebuildBatchSize + 1; batch%25 == 0 || batch == total {
			logger.Info("rebuild progress",
				slog.Int("batch", batch),
				slog.Int("total_batches", total),
				slog.Int("items", cache.Len()),
			)
		}
	}
	return cache, nil
}
