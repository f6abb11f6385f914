package board

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffxivarb/gilarb/internal/domain"
)

func snapshot(item domain.ItemID, listings ...domain.Listing) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ItemID:         item,
		NQAveragePrice: 100,
		Listings:       listings,
		CapturedAt:     1_700_000_000,
	}
}

func TestCacheGetAndPut(t *testing.T) {
	cache := NewCache()

	_, err := cache.Get(5)
	require.ErrorIs(t, err, domain.ErrNotFound)

	cache.Put(snapshot(5))
	snap, err := cache.Get(5)
	require.NoError(t, err)
	require.Equal(t, domain.ItemID(5), snap.ItemID)

	// Put replaces wholesale.
	cache.Put(snapshot(5, domain.Listing{PricePerUnit: 10, WorldID: 66}))
	snap, err = cache.Get(5)
	require.NoError(t, err)
	require.Len(t, snap.Listings, 1)
	require.Equal(t, 1, cache.Len())
}

func TestMinPriceFiltersWorldAndQuality(t *testing.T) {
	cache := NewCache()
	cache.Put(snapshot(5,
		domain.Listing{PricePerUnit: 300, WorldID: 66, HQ: false},
		domain.Listing{PricePerUnit: 150, WorldID: 66, HQ: false},
		domain.Listing{PricePerUnit: 50, WorldID: 33, HQ: false},
		domain.Listing{PricePerUnit: 80, WorldID: 66, HQ: true},
	))

	require.Equal(t, int64(150), cache.MinPrice(5, 66, false))
	require.Equal(t, int64(80), cache.MinPrice(5, 66, true))
	require.Equal(t, int64(50), cache.MinPrice(5, 33, false))

	// No matching listing and unknown item both report zero.
	require.Zero(t, cache.MinPrice(5, 42, true))
	require.Zero(t, cache.MinPrice(999, 66, false))
}

func TestDiskCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")

	cache := NewCache()
	cache.Put(snapshot(5, domain.Listing{PricePerUnit: 120, WorldID: 66}))
	cache.Put(snapshot(9))
	require.NoError(t, saveDisk(path, cache))

	loaded, err := loadDisk(path, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	require.Equal(t, int64(120), loaded.MinPrice(5, 66, false))
}

func TestLoadDiskRejectsStaleBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	require.NoError(t, saveDisk(path, NewCache()))

	// A max age of zero makes any blob stale.
	_, err := loadDisk(path, 0)
	require.ErrorIs(t, err, errCacheStale)
}

func TestLoadDiskMissingFileIsStale(t *testing.T) {
	_, err := loadDisk(filepath.Join(t.TempDir(), "absent.json"), time.Hour)
	require.ErrorIs(t, err, errCacheStale)
}

type fakeFetcher struct {
	ids      []domain.ItemID
	batches  [][]domain.ItemID
	fetchErr error
}

func (f *fakeFetcher) Marketable(context.Context) ([]domain.ItemID, error) {
	return f.ids, nil
}

func (f *fakeFetcher) Fetch(_ context.Context, ids []domain.ItemID) ([]domain.MarketSnapshot, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	batch := make([]domain.ItemID, len(ids))
	copy(batch, ids)
	f.batches = append(f.batches, batch)

	snaps := make([]domain.MarketSnapshot, len(ids))
	for i, id := range ids {
		snaps[i] = snapshot(id)
	}
	return snaps, nil
}

func TestLoadOrRebuildFetchesWholeUniverseInBatches(t *testing.T) {
	ids := make([]domain.ItemID, 250)
	for i := range ids {
		ids[i] = domain.ItemID(i + 1)
	}
	fetcher := &fakeFetcher{ids: ids}
	path := filepath.Join(t.TempDir(), "board.json")

	cache, err := LoadOrRebuild(context.Background(), path, time.Hour, fetcher, slog.Default())
	require.NoError(t, err)
	require.Equal(t, 250, cache.Len())
	require.Len(t, fetcher.batches, 3)
	require.Len(t, fetcher.batches[0], 100)
	require.Len(t, fetcher.batches[2], 50)

	// The rebuilt board is persisted; the next startup loads it from disk
	// without touching upstream.
	fetcher2 := &fakeFetcher{ids: ids, fetchErr: errors.New("should not be called")}
	cache, err = LoadOrRebuild(context.Background(), path, time.Hour, fetcher2, slog.Default())
	require.NoError(t, err)
	require.Equal(t, 250, cache.Len())
	require.Empty(t, fetcher2.batches)
}

func TestLoadOrRebuildCancelledReturnsEmptyCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{ids: []domain.ItemID{1, 2, 3}}
	path := filepath.Join(t.TempDir(), "board.json")

	cache, err := LoadOrRebuild(ctx, path, time.Hour, fetcher, slog.Default())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, cache)
	require.Zero(t, cache.Len())
}

func TestLoadOrRebuildFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{ids: []domain.ItemID{1}, fetchErr: errors.New("upstream down")}
	path := filepath.Join(t.TempDir(), "board.json")

	_, err := LoadOrRebuild(context.Background(), path, time.Hour, fetcher, slog.Default())
	require.Error(t, err)
}
