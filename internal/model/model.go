// Package model defines the core domain types shared across the paper engine.
// All monetary values and token quantities use shopspring/decimal, never
// float64 for money.
package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes s case-insensitively. The boolean is false when s is
// neither BUY nor SELL.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// Source tags where a trade came from.
type Source string

const (
	SourceManual    Source = "manual"
	SourceMigration Source = "migration"
	SourceSeed      Source = "seed"
)

// Trade is an immutable record in the trade ledger.
// Once appended, trades are never modified or deleted individually.
type Trade struct {
	ID        string          `json:"id"`
	TokenMint string          `json:"tokenMint"`
	Side      Side            `json:"side"`
	Qty       decimal.Decimal `json:"qty"`
	PriceUSD  decimal.Decimal `json:"priceUsd"`
	Timestamp int64           `json:"timestamp"` // ms since epoch
	Source    Source          `json:"source"`
}

// Total returns qty * price.
func (t Trade) Total() decimal.Decimal {
	return t.Qty.Mul(t.PriceUSD)
}

// Wallet holds the single USD cash balance.
type Wallet struct {
	CashUSD decimal.Decimal `json:"cashUsd"`
}

// Position is an open holding derived from the ledger. It is never persisted.
type Position struct {
	TokenMint     string          `json:"tokenMint"`
	Qty           decimal.Decimal `json:"qty"`
	Cost          decimal.Decimal `json:"cost"`          // cumulative USD cost basis
	EntryPriceUSD decimal.Decimal `json:"entryPriceUsd"` // cost / qty
	OpenedAt      int64           `json:"openedAt"`
	LastAt        int64           `json:"lastAt"`
}

// Display metrics.
const (
	MetricMarketCap = "mcap"
	MetricPrice     = "price"
)

// Display densities.
const (
	DensityComfortable = "comfortable"
	DensityDense       = "dense"
)

// Preferences are the user's display and quick-trade settings.
type Preferences struct {
	Metric        string    `json:"metric"`
	Density       string    `json:"density"`
	Quote         string    `json:"quote"`
	QuickPercents []float64 `json:"quickPercents"`
}

// Token identifies one side of a trading pair.
type Token struct {
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
	Symbol  string `json:"symbol"`
}

// PriceChange holds percent changes over fixed windows.
type PriceChange struct {
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// Quote is the best-pair market snapshot for one token.
type Quote struct {
	TokenMint    string          `json:"tokenMint"`
	PriceUSD     decimal.Decimal `json:"priceUsd"`
	MarketCap    float64         `json:"marketCap"` // falls back to fdv
	LiquidityUSD float64         `json:"liquidityUsd"`
	VolumeH24    float64         `json:"volumeH24"`
	PriceChange  PriceChange     `json:"priceChange"`
	PairAddress  string          `json:"pairAddress"`
	DexID        string          `json:"dexId"`
	ChainID      string          `json:"chainId"`
	BaseToken    Token           `json:"baseToken"`
	QuoteToken   Token           `json:"quoteToken"`
	TxnsH24      int             `json:"txnsH24"`
	CreatedAt    int64           `json:"pairCreatedAt,omitempty"` // ms since epoch

	// Annotations derived from the fields above.
	Verified  bool   `json:"verified"`
	RiskScore int    `json:"riskScore"`
	RiskLabel string `json:"riskLabel"`
}

// PositionValue is a position marked to market.
type PositionValue struct {
	Position
	Priced        bool            `json:"priced"`
	PriceUSD      decimal.Decimal `json:"priceUsd"`
	ValueUSD      decimal.Decimal `json:"valueUsd"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnlUsd"` // value - cost
	PnLPercent    decimal.Decimal `json:"pnlPercent"`
	Symbol        string          `json:"symbol,omitempty"`
	Verified      bool            `json:"verified"`
	RiskScore     int             `json:"riskScore,omitempty"`
	RiskLabel     string          `json:"riskLabel,omitempty"`
}

// Portfolio aggregates cash and all open positions with mark-to-market P&L.
type Portfolio struct {
	CashUSD           decimal.Decimal `json:"cashUsd"`
	Positions         []PositionValue `json:"positions"`
	PositionsValueUSD decimal.Decimal `json:"positionsValueUsd"`
	CostUSD           decimal.Decimal `json:"costUsd"`
	UnrealizedPnL     decimal.Decimal `json:"unrealizedPnlUsd"`
	EquityUSD         decimal.Decimal `json:"equityUsd"` // cash + positions value
}
