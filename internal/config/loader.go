package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GILARB_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
//
// A missing config file is not an error: the defaults plus environment
// overrides are enough to run against the public endpoints.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GILARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// This lets operators inject secrets at deploy time without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Universalis ──
	setStr(&cfg.Universalis.WsAddr, "GILARB_UNIVERSALIS_WS_ADDR")
	setStr(&cfg.Universalis.RestHost, "GILARB_UNIVERSALIS_REST_HOST")
	setStr(&cfg.Universalis.Region, "GILARB_UNIVERSALIS_REGION")
	setInt(&cfg.Universalis.RequestsPerSecond, "GILARB_UNIVERSALIS_REQUESTS_PER_SECOND")
	setInt(&cfg.Universalis.FetchRateCost, "GILARB_UNIVERSALIS_FETCH_RATE_COST")

	// ── Arbitrage ──
	setInt(&cfg.Arbitrage.HomeWorld, "GILARB_HOME_WORLD")
	setFloat64(&cfg.Arbitrage.SellTax, "GILARB_SELL_TAX")
	setFloat64(&cfg.Arbitrage.BuyTax, "GILARB_BUY_TAX")
	setInt64(&cfg.Arbitrage.ProfitThreshold, "GILARB_PROFIT_THRESHOLD")

	// ── Board ──
	setStr(&cfg.Board.CachePath, "GILARB_BOARD_CACHE_PATH")
	setDuration(&cfg.Board.MaxAge, "GILARB_BOARD_MAX_AGE")

	// ── Bus ──
	setInt(&cfg.Bus.QueueSize, "GILARB_BUS_QUEUE_SIZE")

	// ── Postgres ──
	setStr(&cfg.Postgres.Host, "GILARB_DB_HOST")
	setInt(&cfg.Postgres.Port, "GILARB_DB_PORT")
	setStr(&cfg.Postgres.Database, "GILARB_DB_NAME")
	setStr(&cfg.Postgres.User, "GILARB_DB_USER")
	setStr(&cfg.Postgres.Password, "GILARB_DB_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GILARB_DB_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GILARB_DB_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GILARB_DB_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GILARB_DB_RUN_MIGRATIONS")
	setBool(&cfg.Postgres.Timescale, "GILARB_DB_TIMESCALE")
	setInt(&cfg.Postgres.BufferSize, "GILARB_DB_BUFFER_SIZE")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "GILARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GILARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GILARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GILARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GILARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GILARB_REDIS_TLS_ENABLED")

	// ── S3 / archive ──
	setStr(&cfg.S3.Endpoint, "GILARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GILARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "GILARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GILARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GILARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GILARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GILARB_S3_FORCE_PATH_STYLE")
	setInt(&cfg.Archive.RetentionDays, "GILARB_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "GILARB_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "GILARB_DISCORD_WEBHOOK")
	setInt(&cfg.Notify.RequestsPerSecond, "GILARB_NOTIFY_REQUESTS_PER_SECOND")
	setInt(&cfg.Notify.DedupWindow, "GILARB_NOTIFY_DEDUP_WINDOW")

	// ── Naming ──
	setStr(&cfg.Naming.ItemsURL, "GILARB_NAMING_ITEMS_URL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "GILARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the
// environment variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
