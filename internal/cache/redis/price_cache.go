// Package redis publishes the watcher's view of the home-world market
// to Redis so dashboards and ad-hoc tooling can read it live without
// going through the process.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// Config holds connection parameters for the price cache.
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// PriceCache implements domain.HomePriceCache using Redis hashes. Each
// item's home-world minimum prices are stored at key "price:{itemID}"
// with fields "nq", "hq" and "ts" (Unix seconds). The watcher only ever
// writes; consumers read the hashes directly with their own clients.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache connects to Redis, pings it to verify connectivity, and
// returns the cache. It returns an error if the connection cannot be
// established.
func NewPriceCache(ctx context.Context, cfg Config) (*PriceCache, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &PriceCache{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (pc *PriceCache) Close() error {
	return pc.rdb.Close()
}

func priceKey(item domain.ItemID) string {
	return "price:" + strconv.Itoa(int(item))
}

// SetHomePrices stores the latest home-world minimum listing prices for
// an item. A zero price means no listing of that quality exists.
func (pc *PriceCache) SetHomePrices(ctx context.Context, item domain.ItemID, nq, hq int64, ts time.Time) error {
	fields := map[string]interface{}{
		"nq": strconv.FormatInt(nq, 10),
		"hq": strconv.FormatInt(hq, 10),
		"ts": strconv.FormatInt(ts.Unix(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(item), fields).Err(); err != nil {
		return fmt.Errorf("redis: set home prices %d: %w", item, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.HomePriceCache = (*PriceCache)(nil)
