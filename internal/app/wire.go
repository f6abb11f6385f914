package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/ffxivarb/gilarb/internal/blob/s3"
	"github.com/ffxivarb/gilarb/internal/cache/redis"
	"github.com/ffxivarb/gilarb/internal/config"
	"github.com/ffxivarb/gilarb/internal/domain"
	"github.com/ffxivarb/gilarb/internal/notify"
	"github.com/ffxivarb/gilarb/internal/store/postgres"
)

// Dependencies bundles the optional external backends. Each field is nil
// when its backend is not configured; the pipeline degrades gracefully
// without them.
type Dependencies struct {
	// SaleStore persists the sale audit trail.
	SaleStore domain.SaleStore

	// PriceCache publishes the live home-world minimum prices.
	PriceCache domain.HomePriceCache

	// Archiver moves old sale rows to cold storage.
	Archiver *s3blob.SaleArchiver

	// Sender delivers arbitrage alerts.
	Sender notify.Sender
}

// Wire constructs the concrete backend implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		if cfg.Postgres.Timescale {
			if err := pgClient.EnableTimescale(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres timescale: %w", err)
			}
		}

		deps.SaleStore = postgres.NewSaleStore(pgClient.Pool())
	}

	// --- Redis ---
	if cfg.Redis.Enabled() {
		prices, err := redis.NewPriceCache(ctx, redis.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = prices.Close() })

		deps.PriceCache = prices
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		// Fail at startup rather than on the first archive run hours later.
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		// Validate() guarantees Postgres is configured alongside S3.
		deps.Archiver = s3blob.NewSaleArchiver(s3blob.NewWriter(s3Client), deps.SaleStore, logger)
	}

	// --- Notifications ---
	if cfg.Notify.DiscordWebhookURL != "" {
		deps.Sender = notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL)
	}

	return deps, cleanup, nil
}
