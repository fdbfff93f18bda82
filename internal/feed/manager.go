package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Manager runs at most one feed per slot. Starting a feed in an occupied
// slot cancels the previous one first, so a slot never delivers prices for a
// token it has moved away from.
type Manager struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	feeds map[string]*Handle
}

// NewManager creates a manager whose feeds poll f.
func NewManager(f Fetcher, interval, timeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		fetcher:  f,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		feeds:    make(map[string]*Handle),
	}
}

// Start replaces whatever feed occupies slot with a feed for tokenMint.
func (m *Manager) Start(ctx context.Context, slot, tokenMint string, onUpdate func(Update)) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.feeds[slot]; ok {
		prev.Cancel()
	}
	h := Start(ctx, m.fetcher, Options{
		TokenMint: tokenMint,
		Interval:  m.interval,
		Timeout:   m.timeout,
		OnUpdate:  onUpdate,
		Logger:    m.logger,
	})
	m.feeds[slot] = h
	return h
}

// Stop cancels the feed in slot, if any.
func (m *Manager) Stop(slot string) {
	m.mu.Lock()
	h, ok := m.feeds[slot]
	delete(m.feeds, slot)
	m.mu.Unlock()
	if ok {
		h.Cancel()
	}
}

// Active returns the token tracked in slot.
func (m *Manager) Active(slot string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.feeds[slot]
	if !ok {
		return "", false
	}
	return h.TokenMint(), true
}

// Len returns the number of occupied slots.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.feeds)
}

// Close cancels every feed.
func (m *Manager) Close() {
	m.mu.Lock()
	feeds := m.feeds
	m.feeds = make(map[string]*Handle)
	m.mu.Unlock()
	for _, h := range feeds {
		h.Cancel()
	}
}

// PriceBook keeps the latest delivered price per token. The trade endpoint
// reads it when a request omits a price.
type PriceBook struct {
	mu     sync.RWMutex
	prices map[string]Update
}

func NewPriceBook() *PriceBook {
	return &PriceBook{prices: make(map[string]Update)}
}

// Record stores u if it is newer than what the book holds.
func (b *PriceBook) Record(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.prices[u.TokenMint]; ok && cur.At.After(u.At) {
		return
	}
	b.prices[u.TokenMint] = u
}

// Latest returns the most recent price for tokenMint no older than maxAge.
// A zero maxAge accepts any age.
func (b *PriceBook) Latest(tokenMint string, maxAge time.Duration) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.prices[tokenMint]
	if !ok {
		return decimal.Zero, false
	}
	if maxAge > 0 && time.Since(u.At) > maxAge {
		return decimal.Zero, false
	}
	return u.PriceUSD, true
}
