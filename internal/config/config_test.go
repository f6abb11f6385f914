package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffxivarb/gilarb/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Arbitrage.HomeWorld = 66
	return cfg
}

func TestValidateRequiresHomeWorld(t *testing.T) {
	cfg := Defaults()

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "home_world")
}

func TestValidateRejectsHomeWorldOutsideTable(t *testing.T) {
	cfg := validConfig()
	cfg.Arbitrage.HomeWorld = 9999

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not in the worlds table")
}

func TestValidateAcceptsDefaultsWithHomeWorld(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	cfg.Universalis.RequestsPerSecond = 0
	cfg.Board.CachePath = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "log_level")
	require.Contains(t, err.Error(), "requests_per_second")
	require.Contains(t, err.Error(), "cache_path")
}

func TestValidateS3RequiresPostgres(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Bucket = "archive"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "archival requires postgres")
}

func TestWorldTableParsesAndSorts(t *testing.T) {
	cfg := validConfig()

	table, ids, err := cfg.WorldTable()
	require.NoError(t, err)
	require.Equal(t, "Odin", table[66])
	require.Equal(t, []domain.WorldID{33, 36, 42, 56, 66, 67, 402}, ids)
}

func TestWorldTableRejectsNonNumericKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Worlds = map[string]string{"odin": "Odin"}

	_, _, err := cfg.WorldTable()
	require.Error(t, err)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[arbitrage]
home_world = 33
profit_threshold = 50000

[board]
max_age = "2h"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 33, cfg.Arbitrage.HomeWorld)
	require.Equal(t, int64(50_000), cfg.Arbitrage.ProfitThreshold)
	require.Equal(t, 2*time.Hour, cfg.Board.MaxAge.Duration)

	// Untouched sections keep their defaults.
	require.Equal(t, 25, cfg.Universalis.RequestsPerSecond)
	require.Equal(t, "wss://universalis.app/api/ws", cfg.Universalis.WsAddr)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, 25, cfg.Universalis.RequestsPerSecond)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GILARB_HOME_WORLD", "42")
	t.Setenv("GILARB_DISCORD_WEBHOOK", "https://discord.test/hook")
	t.Setenv("GILARB_BOARD_MAX_AGE", "30m")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	require.Equal(t, 42, cfg.Arbitrage.HomeWorld)
	require.Equal(t, "https://discord.test/hook", cfg.Notify.DiscordWebhookURL)
	require.Equal(t, 30*time.Minute, cfg.Board.MaxAge.Duration)
}
