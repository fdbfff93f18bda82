// Package wallet persists the single USD cash balance.
//
// Only the trade executor should move cash; the API exposes no
// credit/debit operations for that reason.
package wallet

import (
	"context"
	"log/slog"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/state"
	"github.com/tokenuniverse/paper-engine/internal/store"
)

// DefaultCashUSD seeds a wallet created on first use.
var DefaultCashUSD = decimal.NewFromInt(10000)

// Patch lists the fields to overwrite. Nil fields keep their default.
type Patch struct {
	CashUSD *decimal.Decimal `json:"cashUsd,omitempty"`
}

// document is the stored shape; a missing field marks it malformed.
type document struct {
	CashUSD *decimal.Decimal `json:"cashUsd"`
}

// Wallet reads and writes the stored balance.
type Wallet struct {
	store       store.Store
	defaultCash decimal.Decimal
	logger      *slog.Logger
}

// New creates a wallet over st. A zero defaultCash selects DefaultCashUSD.
func New(st store.Store, defaultCash decimal.Decimal, logger *slog.Logger) *Wallet {
	if defaultCash.IsZero() {
		defaultCash = DefaultCashUSD
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Wallet{
		store:       st,
		defaultCash: defaultCash,
		logger:      logger.With("component", "wallet"),
	}
}

// Defaults returns the wallet a fresh install starts with.
func (w *Wallet) Defaults() model.Wallet {
	return model.Wallet{CashUSD: w.defaultCash}
}

// Get returns the stored wallet. An absent or malformed wallet is replaced
// by the default and persisted.
func (w *Wallet) Get(ctx context.Context) (model.Wallet, error) {
	var doc document
	err := state.Load(ctx, w.store, state.KeyWallet, &doc)
	useDefault, fatal := state.Fallback(err)
	if fatal != nil {
		return model.Wallet{}, fatal
	}
	if !useDefault && doc.CashUSD != nil {
		return model.Wallet{CashUSD: *doc.CashUSD}, nil
	}

	if state.IsCorrupt(err) || (err == nil && doc.CashUSD == nil) {
		w.logger.Warn("wallet unreadable, reseeding default", "cash", w.defaultCash.String())
	}
	def := w.Defaults()
	if err := state.Save(ctx, w.store, state.KeyWallet, def); err != nil {
		return model.Wallet{}, err
	}
	return def, nil
}

// Set merges p onto the defaults, persists and returns the result.
func (w *Wallet) Set(ctx context.Context, p Patch) (model.Wallet, error) {
	merged := w.Defaults()
	if p.CashUSD != nil {
		merged.CashUSD = *p.CashUSD
	}
	if err := state.Save(ctx, w.store, state.KeyWallet, merged); err != nil {
		return model.Wallet{}, err
	}
	return merged, nil
}

// Reset restores the default balance.
func (w *Wallet) Reset(ctx context.Context) (model.Wallet, error) {
	return w.Set(ctx, Patch{})
}

// FormatUSD renders amount as a dollar string with cents, e.g. "$9,760.00".
func FormatUSD(amount decimal.Decimal) string {
	cents := amount.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}
