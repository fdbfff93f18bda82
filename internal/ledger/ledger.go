// Package ledger implements the append-only trade log, the single source of
// truth for every position.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/state"
	"github.com/tokenuniverse/paper-engine/internal/store"
)

// Ledger appends trades to the persisted log. Individual trades are never
// updated or deleted; Clear is a bulk reset. Every mutation persists the
// full sequence.
type Ledger struct {
	store  store.Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDs overrides the trade id generator.
func WithIDs(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a ledger persisted in st.
func New(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  st,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "ledger")
	return l
}

// Append stores t, filling in a generated id, the current timestamp and the
// manual source when they are unset, and returns the stored trade.
// Callers validate qty and price; the ledger does not.
func (l *Ledger) Append(ctx context.Context, t model.Trade) (model.Trade, error) {
	if t.ID == "" {
		t.ID = l.newID()
	}
	if t.Timestamp == 0 {
		t.Timestamp = l.now().UnixMilli()
	}
	if t.Source == "" {
		t.Source = model.SourceManual
	}

	raw, _, err := l.load(ctx)
	if err != nil {
		return model.Trade{}, err
	}
	enc, err := json.Marshal(t)
	if err != nil {
		return model.Trade{}, fmt.Errorf("encode trade: %w", err)
	}
	// Undecodable records are written back untouched.
	raw = append(raw, enc)
	if err := state.Save(ctx, l.store, state.KeyTrades, raw); err != nil {
		return model.Trade{}, err
	}
	return t, nil
}

// List returns every decodable trade in insertion order. A missing or
// unreadable log reads as empty; individual records that fail to decode are
// skipped.
func (l *Ledger) List(ctx context.Context) ([]model.Trade, error) {
	_, trades, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// load returns the stored records as raw elements alongside the ones that
// decode. An unreadable document yields no elements, so the next write
// replaces it.
func (l *Ledger) load(ctx context.Context) ([]json.RawMessage, []model.Trade, error) {
	var raw []json.RawMessage
	err := state.Load(ctx, l.store, state.KeyTrades, &raw)
	useDefault, fatal := state.Fallback(err)
	if fatal != nil {
		return nil, nil, fatal
	}
	if useDefault {
		if state.IsCorrupt(err) {
			l.logger.Warn("trade log unreadable, treating as empty", "err", err)
		}
		return nil, []model.Trade{}, nil
	}

	trades := make([]model.Trade, 0, len(raw))
	for i, r := range raw {
		var t model.Trade
		if err := json.Unmarshal(r, &t); err != nil {
			l.logger.Warn("skipping undecodable trade", "index", i, "err", err)
			continue
		}
		trades = append(trades, t)
	}
	return raw, trades, nil
}

// Clear empties the ledger.
func (l *Ledger) Clear(ctx context.Context) error {
	if err := state.Save(ctx, l.store, state.KeyTrades, []model.Trade{}); err != nil {
		return err
	}
	l.logger.Info("trade log cleared")
	return nil
}
