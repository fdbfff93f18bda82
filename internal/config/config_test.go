package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Feed.Interval.Duration)
	assert.Equal(t, "0.000000001", cfg.EpsilonDecimal().String())
	assert.Equal(t, "10000", cfg.DefaultCash().String())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[store]
backend = "memory"

[feed]
interval = "2s"

[quote]
max_batch = 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 2*time.Second, cfg.Feed.Interval.Duration)
	assert.Equal(t, 10*time.Second, cfg.Feed.Timeout.Duration, "untouched fields keep defaults")
	assert.Equal(t, 10, cfg.Quote.MaxBatch)
	assert.Equal(t, "solana", cfg.Quote.ChainID)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Store, cfg.Store)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[feed]
interval = "soon"`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TOKENUNIVERSE_SERVER_PORT", "9090")
	t.Setenv("TOKENUNIVERSE_FEED_INTERVAL", "750ms")
	t.Setenv("TOKENUNIVERSE_TRADE_EPSILON", "0.001")
	t.Setenv("TOKENUNIVERSE_QUOTE_MAX_BATCH", "not-a-number")
	t.Setenv("TOKENUNIVERSE_QUOTE_DISCOVERY_URL", "http://localhost:9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Feed.Interval.Duration)
	assert.Equal(t, 0.001, cfg.Trade.Epsilon)
	assert.Equal(t, 60, cfg.Quote.MaxBatch, "unparsable overrides are ignored")
	assert.Equal(t, "http://localhost:9999", cfg.Quote.DiscoveryURL)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Store.Backend = BackendPostgres
	cfg.Trade.Epsilon = -1
	cfg.Feed.Interval = duration{}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"log_level", "postgres_dsn", "epsilon", "feed: interval"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg = Defaults()
	cfg.Store.Backend = "s3"
	assert.ErrorContains(t, cfg.Validate(), "unknown backend")
}
