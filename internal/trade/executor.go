// Package trade validates and executes paper trades and exposes the engine
// over HTTP and WebSocket.
//
// All monetary values use shopspring/decimal, never float64 for money.
package trade

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/ledger"
	"github.com/tokenuniverse/paper-engine/internal/metrics"
	"github.com/tokenuniverse/paper-engine/internal/mint"
	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/position"
	"github.com/tokenuniverse/paper-engine/internal/wallet"
)

// DefaultEpsilon is the tolerance for balance and holding checks.
var DefaultEpsilon = decimal.New(1, -9)

// Validation errors. The messages are user-facing.
var (
	ErrMissingMint       = errors.New("Missing token mint.")
	ErrInvalidAmount     = errors.New("Enter a valid amount.")
	ErrInvalidSide       = errors.New("Invalid trade side.")
	ErrInsufficientCash  = errors.New("Insufficient cash balance.")
	ErrInsufficientToken = errors.New("Not enough tokens to sell.")
)

// rejectReason maps a validation error to its metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingMint):
		return "missing_mint"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, ErrInsufficientToken):
		return "insufficient_tokens"
	}
	return "internal"
}

// IsValidation reports whether err is one of the user-facing validation
// errors.
func IsValidation(err error) bool {
	return rejectReason(err) != "internal"
}

// Request is one trade instruction.
type Request struct {
	TokenMint string          `json:"tokenMint"`
	Side      string          `json:"side"`
	Qty       decimal.Decimal `json:"qty"`
	PriceUSD  decimal.Decimal `json:"priceUsd"`
	Source    model.Source    `json:"source,omitempty"`
}

// Result is the outcome of Execute. Exactly one of Trade or Error is set.
type Result struct {
	OK     bool          `json:"ok"`
	Trade  *model.Trade  `json:"trade,omitempty"`
	Wallet *model.Wallet `json:"wallet,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Broadcaster is notified after every executed trade.
type Broadcaster interface {
	TradeExecuted(t model.Trade, w model.Wallet)
}

// Executor is the only component that moves cash. Executions are
// serialized so that the check-then-write sequence on the ledger and wallet
// never interleaves.
type Executor struct {
	ledger      *ledger.Ledger
	wallet      *wallet.Wallet
	epsilon     decimal.Decimal
	broadcaster Broadcaster
	logger      *slog.Logger
	mu          sync.Mutex
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithEpsilon overrides DefaultEpsilon.
func WithEpsilon(eps decimal.Decimal) ExecutorOption {
	return func(e *Executor) { e.epsilon = eps }
}

// WithBroadcaster registers a listener for executed trades.
func WithBroadcaster(b Broadcaster) ExecutorOption {
	return func(e *Executor) { e.broadcaster = b }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates an executor over the given ledger and wallet.
func NewExecutor(l *ledger.Ledger, w *wallet.Wallet, opts ...ExecutorOption) *Executor {
	e := &Executor{
		ledger:  l,
		wallet:  w,
		epsilon: DefaultEpsilon,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.epsilon.IsNegative() {
		e.epsilon = DefaultEpsilon
	}
	e.logger = e.logger.With("component", "executor")
	return e
}

// SetBroadcaster replaces the trade listener.
func (e *Executor) SetBroadcaster(b Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcaster = b
}

// Execute validates req and, if it passes, appends the trade and moves
// cash. Validation failures come back as a Result with OK false; the error
// return is reserved for storage failures.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	t, w, err := e.execute(ctx, req)
	if err != nil {
		reason := rejectReason(err)
		metrics.TradeRejections.WithLabelValues(reason).Inc()
		if reason == "internal" {
			e.logger.Error("trade failed", "mint", req.TokenMint, "err", err)
			return Result{}, err
		}
		e.logger.Info("trade rejected", "mint", req.TokenMint, "side", req.Side, "reason", err.Error())
		return Result{OK: false, Error: err.Error()}, nil
	}

	metrics.TradesTotal.WithLabelValues(string(t.Side)).Inc()
	metrics.TradeLatency.WithLabelValues(string(t.Side)).Observe(time.Since(start).Seconds())

	e.logger.Info("trade executed",
		"trade_id", t.ID,
		"mint", t.TokenMint,
		"side", t.Side,
		"qty", t.Qty.String(),
		"price_usd", t.PriceUSD.String(),
		"cash_usd", w.CashUSD.String(),
		"source", t.Source,
	)

	if e.broadcaster != nil {
		e.broadcaster.TradeExecuted(t, w)
	}
	return Result{OK: true, Trade: &t, Wallet: &w}, nil
}

func (e *Executor) execute(ctx context.Context, req Request) (model.Trade, model.Wallet, error) {
	tokenMint := strings.TrimSpace(req.TokenMint)
	if tokenMint == "" {
		return model.Trade{}, model.Wallet{}, ErrMissingMint
	}
	if !req.Qty.IsPositive() || !req.PriceUSD.IsPositive() {
		return model.Trade{}, model.Wallet{}, ErrInvalidAmount
	}
	side, ok := model.ParseSide(req.Side)
	if !ok {
		return model.Trade{}, model.Wallet{}, ErrInvalidSide
	}

	cur, err := e.wallet.Get(ctx)
	if err != nil {
		return model.Trade{}, model.Wallet{}, err
	}
	total := req.Qty.Mul(req.PriceUSD)

	var cash decimal.Decimal
	switch side {
	case model.SideBuy:
		if total.GreaterThan(cur.CashUSD.Add(e.epsilon)) {
			return model.Trade{}, model.Wallet{}, ErrInsufficientCash
		}
		cash = cur.CashUSD.Sub(total)
	case model.SideSell:
		trades, err := e.ledger.List(ctx)
		if err != nil {
			return model.Trade{}, model.Wallet{}, err
		}
		held := position.Holding(trades, tokenMint)
		if req.Qty.GreaterThan(held.Add(e.epsilon)) {
			return model.Trade{}, model.Wallet{}, ErrInsufficientToken
		}
		cash = cur.CashUSD.Add(total)
	}

	t, err := e.ledger.Append(ctx, model.Trade{
		TokenMint: tokenMint,
		Side:      side,
		Qty:       req.Qty,
		PriceUSD:  req.PriceUSD,
		Source:    req.Source,
	})
	if err != nil {
		return model.Trade{}, model.Wallet{}, err
	}
	w, err := e.wallet.Set(ctx, wallet.Patch{CashUSD: &cash})
	if err != nil {
		return model.Trade{}, model.Wallet{}, err
	}
	return t, w, nil
}

// SeedTrade is one of the demo buys applied by Seed.
type SeedTrade struct {
	TokenMint string
	Qty       decimal.Decimal
	PriceUSD  decimal.Decimal
}

// SeedTrades are the demo holdings: 1.2 wrapped SOL at 200 and 800000 BONK
// at 0.00001.
var SeedTrades = []SeedTrade{
	{TokenMint: mint.WrappedSOL, Qty: decimal.RequireFromString("1.2"), PriceUSD: decimal.NewFromInt(200)},
	{TokenMint: mint.Bonk, Qty: decimal.NewFromInt(800000), PriceUSD: decimal.RequireFromString("0.00001")},
}

// Seed executes the demo buys with source "seed". It stops at the first
// rejected trade and returns the results gathered so far.
func (e *Executor) Seed(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(SeedTrades))
	for _, st := range SeedTrades {
		res, err := e.Execute(ctx, Request{
			TokenMint: st.TokenMint,
			Side:      string(model.SideBuy),
			Qty:       st.Qty,
			PriceUSD:  st.PriceUSD,
			Source:    model.SourceSeed,
		})
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if !res.OK {
			break
		}
	}
	return results, nil
}
