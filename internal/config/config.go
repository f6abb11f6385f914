// Package config defines the top-level configuration for the market
// watcher and provides validation helpers.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ffxivarb/gilarb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from
// a TOML file and then optionally overridden by GILARB_* environment
// variables.
type Config struct {
	Universalis UniversalisConfig `toml:"universalis"`
	Arbitrage   ArbitrageConfig   `toml:"arbitrage"`
	Board       BoardConfig       `toml:"board"`
	Bus         BusConfig         `toml:"bus"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Archive     ArchiveConfig     `toml:"archive"`
	Notify      NotifyConfig      `toml:"notify"`
	Naming      NamingConfig      `toml:"naming"`
	// Worlds maps world ids (as TOML keys) to display names. The key set
	// is the subscription universe for the stream ingestor.
	Worlds   map[string]string `toml:"worlds"`
	LogLevel string            `toml:"log_level"`
}

// UniversalisConfig holds endpoints and rate parameters for the
// Universalis streaming and REST APIs.
type UniversalisConfig struct {
	WsAddr            string `toml:"ws_addr"`
	RestHost          string `toml:"rest_host"`
	Region            string `toml:"region"`
	RequestsPerSecond int    `toml:"requests_per_second"`
	// FetchRateCost is how many rate-limiter tokens one successful bulk
	// fetch consumes in total (one is taken per attempt; the remainder
	// after parsing). The upstream source double-counts, so 2 preserves
	// its throttling headroom; set 1 for a strict one-token-per-request
	// reading.
	FetchRateCost int `toml:"fetch_rate_cost"`
}

// ArbitrageConfig holds the profit evaluation parameters.
type ArbitrageConfig struct {
	HomeWorld       int     `toml:"home_world"`
	SellTax         float64 `toml:"sell_tax"`
	BuyTax          float64 `toml:"buy_tax"`
	ProfitThreshold int64   `toml:"profit_threshold"`
}

// BoardConfig holds the snapshot-cache staleness parameters.
type BoardConfig struct {
	CachePath string   `toml:"cache_path"`
	MaxAge    duration `toml:"max_age"`
}

// BusConfig holds the bounded queue sizes for the event bus.
type BusConfig struct {
	QueueSize int `toml:"queue_size"`
}

// PostgresConfig holds connection parameters for the sales store.
// Persistence is optional: leave Host empty to disable it.
type PostgresConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	Timescale     bool   `toml:"timescale"`
	BufferSize    int    `toml:"buffer_size"`
}

// Enabled reports whether persistence is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// RedisConfig holds connection parameters for the optional live
// home-price cache. Leave Addr empty to disable it.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Enabled reports whether the live price cache is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// S3Config holds S3-compatible object storage parameters for the
// cold-storage archiver. Leave Bucket empty to disable archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Enabled reports whether object storage is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// NotifyConfig holds alert delivery parameters.
type NotifyConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	RequestsPerSecond int    `toml:"requests_per_second"`
	DedupWindow       int    `toml:"dedup_window"`
}

// NamingConfig holds the item-name lookup source.
type NamingConfig struct {
	ItemsURL string `toml:"items_url"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "4h", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder
// can parse duration strings like "4h" or "24h".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml. The default worlds
// table covers the European data center the watcher was built for.
func Defaults() Config {
	return Config{
		Universalis: UniversalisConfig{
			WsAddr:            "wss://universalis.app/api/ws",
			RestHost:          "https://universalis.app/api/v2",
			Region:            "europe",
			RequestsPerSecond: 25,
			FetchRateCost:     2,
		},
		Arbitrage: ArbitrageConfig{
			HomeWorld:       0, // required, no sensible default
			SellTax:         0.05,
			BuyTax:          0.05,
			ProfitThreshold: 100_000,
		},
		Board: BoardConfig{
			CachePath: "market_board.json",
			MaxAge:    duration{4 * time.Hour},
		},
		Bus: BusConfig{
			QueueSize: 1024,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
			BufferSize:    100,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			RequestsPerSecond: 50,
			DedupWindow:       10,
		},
		Naming: NamingConfig{
			ItemsURL: "https://raw.githubusercontent.com/ffxiv-teamcraft/ffxiv-teamcraft/master/libs/data/src/lib/json/items.json",
		},
		Worlds: map[string]string{
			"33":  "Twintania",
			"36":  "Lich",
			"42":  "Zodiark",
			"56":  "Phoenix",
			"66":  "Odin",
			"67":  "Shiva",
			"402": "Alpha",
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// WorldTable parses the Worlds map into typed ids sorted ascending.
// It returns an error for non-numeric keys.
func (c *Config) WorldTable() (map[domain.WorldID]string, []domain.WorldID, error) {
	table := make(map[domain.WorldID]string, len(c.Worlds))
	ids := make([]domain.WorldID, 0, len(c.Worlds))
	for key, name := range c.Worlds {
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, nil, fmt.Errorf("worlds: key %q is not a world id", key)
		}
		id := domain.WorldID(n)
		table[id] = name
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return table, ids, nil
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Universalis
	if c.Universalis.WsAddr == "" {
		errs = append(errs, "universalis: ws_addr must not be empty")
	}
	if c.Universalis.RestHost == "" {
		errs = append(errs, "universalis: rest_host must not be empty")
	}
	if c.Universalis.Region == "" {
		errs = append(errs, "universalis: region must not be empty")
	}
	if c.Universalis.RequestsPerSecond < 1 {
		errs = append(errs, "universalis: requests_per_second must be >= 1")
	}
	if c.Universalis.FetchRateCost < 1 {
		errs = append(errs, "universalis: fetch_rate_cost must be >= 1")
	}

	// Arbitrage — a home world is mandatory: without it there is no
	// destination market to evaluate against.
	if c.Arbitrage.HomeWorld <= 0 {
		errs = append(errs, "arbitrage: home_world must be set to a valid world id")
	} else if _, ok := c.Worlds[strconv.Itoa(c.Arbitrage.HomeWorld)]; !ok {
		errs = append(errs, fmt.Sprintf("arbitrage: home_world %d is not in the worlds table", c.Arbitrage.HomeWorld))
	}
	if c.Arbitrage.SellTax < 0 || c.Arbitrage.SellTax >= 1 {
		errs = append(errs, fmt.Sprintf("arbitrage: sell_tax must be in [0,1), got %v", c.Arbitrage.SellTax))
	}
	if c.Arbitrage.BuyTax < 0 || c.Arbitrage.BuyTax >= 1 {
		errs = append(errs, fmt.Sprintf("arbitrage: buy_tax must be in [0,1), got %v", c.Arbitrage.BuyTax))
	}
	if c.Arbitrage.ProfitThreshold <= 0 {
		errs = append(errs, "arbitrage: profit_threshold must be > 0")
	}

	// Board
	if c.Board.CachePath == "" {
		errs = append(errs, "board: cache_path must not be empty")
	}
	if c.Board.MaxAge.Duration <= 0 {
		errs = append(errs, "board: max_age must be > 0")
	}

	// Bus
	if c.Bus.QueueSize < 1 {
		errs = append(errs, "bus: queue_size must be >= 1")
	}

	// Worlds
	if len(c.Worlds) == 0 {
		errs = append(errs, "worlds: at least one world must be configured")
	}
	if _, _, err := c.WorldTable(); err != nil {
		errs = append(errs, err.Error())
	}

	// Postgres (only when enabled)
	if c.Postgres.Enabled() {
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
		if c.Postgres.BufferSize < 1 {
			errs = append(errs, "postgres: buffer_size must be >= 1")
		}
	}

	// Redis (only when enabled)
	if c.Redis.Enabled() && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 / archive (only when enabled)
	if c.S3.Enabled() {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if !c.Postgres.Enabled() {
			errs = append(errs, "s3: archival requires postgres persistence to be configured")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Notify
	if c.Notify.RequestsPerSecond < 1 {
		errs = append(errs, "notify: requests_per_second must be >= 1")
	}
	if c.Notify.DedupWindow < 1 {
		errs = append(errs, "notify: dedup_window must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
