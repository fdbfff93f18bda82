// Package config defines the configuration of the paper engine and provides
// validation helpers.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TOKENUNIVERSE_* environment
// variables.
type Config struct {
	Server   ServerConfig `toml:"server"`
	Store    StoreConfig  `toml:"store"`
	Wallet   WalletConfig `toml:"wallet"`
	Trade    TradeConfig  `toml:"trade"`
	Feed     FeedConfig   `toml:"feed"`
	Quote    QuoteConfig  `toml:"quote"`
	LogLevel string       `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port int `toml:"port"`
}

// StoreConfig selects where state is persisted.
type StoreConfig struct {
	Backend     string   `toml:"backend"`
	Path        string   `toml:"path"`
	PostgresDSN string   `toml:"postgres_dsn"`
	RedisURL    string   `toml:"redis_url"`
	CacheTTL    duration `toml:"cache_ttl"`
}

// WalletConfig holds the starting balance.
type WalletConfig struct {
	DefaultCashUSD float64 `toml:"default_cash_usd"`
}

// TradeConfig holds executor tolerances.
type TradeConfig struct {
	Epsilon float64 `toml:"epsilon"`
}

// FeedConfig holds live price polling parameters.
type FeedConfig struct {
	Interval duration `toml:"interval"`
	Timeout  duration `toml:"timeout"`
}

// QuoteConfig holds market data API parameters.
type QuoteConfig struct {
	BaseURL      string   `toml:"base_url"`
	DiscoveryURL string   `toml:"discovery_url"`
	ChainID      string   `toml:"chain_id"`
	CacheTTL     duration `toml:"cache_ttl"`
	MaxBatch     int      `toml:"max_batch"`
	Concurrency  int      `toml:"concurrency"`
	HTTPTimeout  duration `toml:"http_timeout"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values a fresh install uses.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Store: StoreConfig{
			Backend:  BackendFile,
			Path:     "token_universe.json",
			CacheTTL: duration{30 * time.Second},
		},
		Wallet: WalletConfig{DefaultCashUSD: 10000},
		Trade:  TradeConfig{Epsilon: 1e-9},
		Feed: FeedConfig{
			Interval: duration{5 * time.Second},
			Timeout:  duration{10 * time.Second},
		},
		Quote: QuoteConfig{
			BaseURL:      "https://api.dexscreener.com/latest/dex",
			DiscoveryURL: "https://api.dexscreener.com",
			ChainID:      "solana",
			CacheTTL:     duration{20 * time.Second},
			MaxBatch:     60,
			Concurrency:  8,
			HTTPTimeout:  duration{12 * time.Second},
		},
		LogLevel: "info",
	}
}

// DefaultCash returns the configured starting balance as a decimal.
func (c *Config) DefaultCash() decimal.Decimal {
	return decimal.NewFromFloat(c.Wallet.DefaultCashUSD)
}

// EpsilonDecimal returns the trade tolerance as a decimal.
func (c *Config) EpsilonDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Trade.Epsilon)
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be in 1..65535, got %d", c.Server.Port))
	}

	switch c.Store.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Store.Path) == "" {
			errs = append(errs, "store: path must not be empty for the file backend")
		}
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.Store.PostgresDSN) == "" {
			errs = append(errs, "store: postgres_dsn is required for the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: file, memory, postgres)", c.Store.Backend))
	}
	if c.Store.RedisURL != "" && c.Store.CacheTTL.Duration <= 0 {
		errs = append(errs, "store: cache_ttl must be positive when redis_url is set")
	}

	if c.Wallet.DefaultCashUSD <= 0 {
		errs = append(errs, "wallet: default_cash_usd must be positive")
	}
	if c.Trade.Epsilon < 0 {
		errs = append(errs, "trade: epsilon must not be negative")
	}

	if c.Feed.Interval.Duration <= 0 {
		errs = append(errs, "feed: interval must be positive")
	}
	if c.Feed.Timeout.Duration <= 0 {
		errs = append(errs, "feed: timeout must be positive")
	}

	if c.Quote.BaseURL == "" {
		errs = append(errs, "quote: base_url must not be empty")
	}
	if c.Quote.MaxBatch <= 0 {
		errs = append(errs, "quote: max_batch must be positive")
	}
	if c.Quote.Concurrency <= 0 {
		errs = append(errs, "quote: concurrency must be positive")
	}
	if c.Quote.CacheTTL.Duration <= 0 {
		errs = append(errs, "quote: cache_ttl must be positive")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
