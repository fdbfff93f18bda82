package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOKENUNIVERSE_* environment variable overrides,
// and returns the final Config. A missing file leaves the defaults in place;
// an empty path skips the file entirely. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TOKENUNIVERSE_* environment variables
// and overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "TOKENUNIVERSE_SERVER_PORT")

	// ── Store ──
	setStr(&cfg.Store.Backend, "TOKENUNIVERSE_STORE_BACKEND")
	setStr(&cfg.Store.Path, "TOKENUNIVERSE_STORE_PATH")
	setStr(&cfg.Store.PostgresDSN, "TOKENUNIVERSE_STORE_POSTGRES_DSN")
	setStr(&cfg.Store.RedisURL, "TOKENUNIVERSE_STORE_REDIS_URL")
	setDuration(&cfg.Store.CacheTTL, "TOKENUNIVERSE_STORE_CACHE_TTL")

	// ── Wallet / Trade ──
	setFloat64(&cfg.Wallet.DefaultCashUSD, "TOKENUNIVERSE_WALLET_DEFAULT_CASH_USD")
	setFloat64(&cfg.Trade.Epsilon, "TOKENUNIVERSE_TRADE_EPSILON")

	// ── Feed ──
	setDuration(&cfg.Feed.Interval, "TOKENUNIVERSE_FEED_INTERVAL")
	setDuration(&cfg.Feed.Timeout, "TOKENUNIVERSE_FEED_TIMEOUT")

	// ── Quote ──
	setStr(&cfg.Quote.BaseURL, "TOKENUNIVERSE_QUOTE_BASE_URL")
	setStr(&cfg.Quote.DiscoveryURL, "TOKENUNIVERSE_QUOTE_DISCOVERY_URL")
	setStr(&cfg.Quote.ChainID, "TOKENUNIVERSE_QUOTE_CHAIN_ID")
	setDuration(&cfg.Quote.CacheTTL, "TOKENUNIVERSE_QUOTE_CACHE_TTL")
	setInt(&cfg.Quote.MaxBatch, "TOKENUNIVERSE_QUOTE_MAX_BATCH")
	setInt(&cfg.Quote.Concurrency, "TOKENUNIVERSE_QUOTE_CONCURRENCY")
	setDuration(&cfg.Quote.HTTPTimeout, "TOKENUNIVERSE_QUOTE_HTTP_TIMEOUT")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TOKENUNIVERSE_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and parses.

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
