// Package app wires the engine's components from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tokenuniverse/paper-engine/internal/config"
	"github.com/tokenuniverse/paper-engine/internal/feed"
	"github.com/tokenuniverse/paper-engine/internal/ledger"
	"github.com/tokenuniverse/paper-engine/internal/prefs"
	"github.com/tokenuniverse/paper-engine/internal/quote"
	"github.com/tokenuniverse/paper-engine/internal/state"
	"github.com/tokenuniverse/paper-engine/internal/store"
	"github.com/tokenuniverse/paper-engine/internal/trade"
	"github.com/tokenuniverse/paper-engine/internal/wallet"
	"github.com/tokenuniverse/paper-engine/internal/watchlist"
)

// Dependencies bundles every component the server and the CLI operate on.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store     store.Store
	Ledger    *ledger.Ledger
	Wallet    *wallet.Wallet
	Prefs     *prefs.Store
	Watchlist *watchlist.Watchlist
	Executor  *trade.Executor
	Quotes    *quote.Client
	Feeds     *feed.Manager
	Prices    *feed.PriceBook
}

// Wire opens the configured store, migrates it to the current schema, and
// constructs every component over it. The cleanup function closes feeds and
// backends in reverse order of creation and flushes the file store.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Redis (optional; shared by the state cache and the quote cache) ---
	var rdb *redis.Client
	if cfg.Store.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
		closers = append(closers, func() { rdb.Close() })
	}

	// --- State store ---
	st, err := openStore(ctx, cfg, rdb, logger, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if _, err := state.NewMigrator(st, logger).Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: migrate: %w", err)
	}

	deps := &Dependencies{Store: st}
	deps.Ledger = ledger.New(st, ledger.WithLogger(logger))
	deps.Wallet = wallet.New(st, cfg.DefaultCash(), logger)
	deps.Prefs = prefs.New(st, logger)
	deps.Watchlist = watchlist.New(st, logger)
	deps.Executor = trade.NewExecutor(deps.Ledger, deps.Wallet,
		trade.WithEpsilon(cfg.EpsilonDecimal()),
		trade.WithLogger(logger),
	)

	// --- Quotes and live prices ---
	var qcache quote.Cache
	if rdb != nil {
		qcache = quote.NewRedisCache(rdb)
	}
	deps.Quotes = quote.NewClient(quote.Config{
		BaseURL:      cfg.Quote.BaseURL,
		DiscoveryURL: cfg.Quote.DiscoveryURL,
		ChainID:      cfg.Quote.ChainID,
		CacheTTL:     cfg.Quote.CacheTTL.Duration,
		MaxBatch:     cfg.Quote.MaxBatch,
		Concurrency:  cfg.Quote.Concurrency,
		HTTPClient:   &http.Client{Timeout: cfg.Quote.HTTPTimeout.Duration},
		Cache:        qcache,
		Logger:       logger,
	})
	deps.Feeds = feed.NewManager(deps.Quotes, cfg.Feed.Interval.Duration, cfg.Feed.Timeout.Duration, logger)
	deps.Prices = feed.NewPriceBook()
	closers = append(closers, deps.Feeds.Close)

	return deps, cleanup, nil
}

func openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger, closers *[]func()) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory store (data will not persist)")
		return store.NewMemoryStore(), nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("wire: postgres: %w", err)
		}
		*closers = append(*closers, pool.Close)

		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("wire: postgres schema: %w", err)
		}
		logger.Info("connected to PostgreSQL")

		if rdb != nil {
			logger.Info("Redis cache enabled", "ttl", cfg.Store.CacheTTL.Duration.String())
			return store.NewCachedStore(pg, rdb, cfg.Store.CacheTTL.Duration), nil
		}
		return pg, nil

	default:
		fs, err := store.OpenFileStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("wire: file store: %w", err)
		}
		*closers = append(*closers, func() {
			if err := fs.Close(); err != nil {
				logger.Error("flush state file", "path", fs.Path(), "err", err)
			}
		})
		logger.Debug("opened state file", "path", fs.Path())
		return fs, nil
	}
}
