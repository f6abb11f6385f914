package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// errCacheStale reports that the disk blob exists but is older than the
// configured max age (or does not exist at all).
var errCacheStale = errors.New("board: disk cache stale or missing")

// loadDisk deserializes the cache blob at path if its modification time
// is younger than maxAge.
func loadDisk(path string, maxAge time.Duration) (*Cache, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errCacheStale
	}
	if time.Since(info.ModTime()) >= maxAge {
		return nil, errCacheStale
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("board: read disk cache: %w", err)
	}

	var snapshots map[domain.ItemID]domain.MarketSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("board: decode disk cache: %w", err)
	}

	return &Cache{snapshots: snapshots}, nil
}

// saveDisk serializes the cache contents to path. The write goes
// through a temp file and rename so a crash never leaves a truncated
// blob behind.
func saveDisk(path string, cache *Cache) error {
	data, err := json.Marshal(cache.snapshots)
	if err != nil {
		return fmt.Errorf("board: encode disk cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("board: write disk cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("board: rename disk cache: %w", err)
	}
	return nil
}
