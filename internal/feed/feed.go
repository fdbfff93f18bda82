// Package feed polls the quote source on an interval and delivers price
// updates for one token to a callback.
//
// A feed is cancellable: once Cancel returns, no further updates are
// delivered, even if a fetch was in flight at the time.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/metrics"
	"github.com/tokenuniverse/paper-engine/internal/model"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Fetcher returns the current quote for a token. quote.Client satisfies it.
type Fetcher interface {
	FetchToken(ctx context.Context, tokenMint string) (*model.Quote, error)
}

// Update is one delivered price.
type Update struct {
	TokenMint string          `json:"tokenMint"`
	PriceUSD  decimal.Decimal `json:"priceUsd"`
	Quote     *model.Quote    `json:"quote,omitempty"`
	At        time.Time       `json:"at"`
}

// Options configures a feed.
type Options struct {
	TokenMint string
	Interval  time.Duration // zero means DefaultInterval
	Timeout   time.Duration // per-fetch deadline; zero means DefaultTimeout
	OnUpdate  func(Update)
	Logger    *slog.Logger
}

// Handle controls a running feed.
type Handle struct {
	mint   string
	cancel context.CancelFunc
	done   chan struct{}

	alive   atomic.Bool
	deliver sync.Mutex
	once    sync.Once
}

// Start fetches immediately, then again Interval after each fetch completes.
// A failed or empty fetch skips that tick. The feed runs until Cancel, Stop,
// or ctx is done.
func Start(ctx context.Context, f Fetcher, opts Options) *Handle {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "feed", "mint", opts.TokenMint)

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		mint:   opts.TokenMint,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.alive.Store(true)

	metrics.ActiveFeeds.Inc()
	go h.run(ctx, f, opts, logger)
	return h
}

func (h *Handle) run(ctx context.Context, f Fetcher, opts Options, logger *slog.Logger) {
	defer close(h.done)
	defer metrics.ActiveFeeds.Dec()
	defer h.alive.Store(false)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		h.tick(ctx, f, opts, logger)
		timer.Reset(opts.Interval)
	}
}

func (h *Handle) tick(ctx context.Context, f Fetcher, opts Options, logger *slog.Logger) {
	// Cancelling the feed does not abort a fetch already on the wire; its
	// result is dropped by the liveness check below.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.Timeout)
	q, err := f.FetchToken(fctx, opts.TokenMint)
	cancel()

	if err != nil || q == nil || !q.PriceUSD.IsPositive() {
		if ctx.Err() == nil {
			metrics.FeedFailures.Inc()
			logger.Debug("feed tick skipped", "err", err)
		}
		return
	}

	h.deliver.Lock()
	defer h.deliver.Unlock()
	if !h.alive.Load() {
		return
	}
	metrics.FeedTicks.Inc()
	if opts.OnUpdate != nil {
		opts.OnUpdate(Update{
			TokenMint: opts.TokenMint,
			PriceUSD:  q.PriceUSD,
			Quote:     q,
			At:        time.Now(),
		})
	}
}

// TokenMint returns the token this feed tracks.
func (h *Handle) TokenMint() string { return h.mint }

// Cancel stops the feed and blocks until any in-progress delivery finishes.
// It is idempotent. It must not be called from inside OnUpdate; use Stop
// there instead.
func (h *Handle) Cancel() {
	h.Stop()
	// Wait out a delivery that passed the liveness check before Stop.
	h.deliver.Lock()
	h.deliver.Unlock()
}

// Stop marks the feed dead and cancels its context without waiting.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.alive.Store(false)
		h.cancel()
	})
}

// Done is closed once the polling goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }
