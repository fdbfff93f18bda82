// Package position derives open positions from the trade ledger and marks
// them to market.
//
// Positions are a read-only projection: they are recomputed from the full
// trade log on every query and never stored.
package position

import (
	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/model"
)

type agg struct {
	mint     string
	qty      decimal.Decimal
	cost     decimal.Decimal
	openedAt int64
	lastAt   int64
}

// Derive folds trades, in ledger order, into the set of open positions using
// average cost. Output order follows each token's first appearance in the
// ledger.
//
// Trades with an empty mint, a non-positive qty or price, or an unknown side
// are skipped. A SELL reduces qty (clamped at zero) and leaves cost
// untouched: there is no lot accounting, so the entry price of the remaining
// quantity is not recomputed on sells. Tokens whose qty nets to zero are
// dropped.
//
// Derive is pure and safe for concurrent use.
func Derive(trades []model.Trade) []model.Position {
	byMint := make(map[string]*agg)
	var order []string

	for _, tr := range trades {
		if tr.TokenMint == "" || !tr.Qty.IsPositive() || !tr.PriceUSD.IsPositive() {
			continue
		}
		side, ok := model.ParseSide(string(tr.Side))
		if !ok {
			continue
		}

		p, ok := byMint[tr.TokenMint]
		if !ok {
			p = &agg{mint: tr.TokenMint, openedAt: tr.Timestamp, lastAt: tr.Timestamp}
			byMint[tr.TokenMint] = p
			order = append(order, tr.TokenMint)
		}
		if tr.Timestamp > p.lastAt {
			p.lastAt = tr.Timestamp
		}
		if tr.Timestamp < p.openedAt {
			p.openedAt = tr.Timestamp
		}

		switch side {
		case model.SideBuy:
			p.cost = p.cost.Add(tr.Total())
			p.qty = p.qty.Add(tr.Qty)
		case model.SideSell:
			p.qty = p.qty.Sub(tr.Qty)
			if p.qty.IsNegative() {
				p.qty = decimal.Zero
			}
		}
	}

	out := make([]model.Position, 0, len(order))
	for _, mint := range order {
		p := byMint[mint]
		if !p.qty.IsPositive() {
			continue
		}
		out = append(out, model.Position{
			TokenMint:     p.mint,
			Qty:           p.qty,
			Cost:          p.cost,
			EntryPriceUSD: p.cost.Div(p.qty),
			OpenedAt:      p.openedAt,
			LastAt:        p.lastAt,
		})
	}
	return out
}

// Holding returns the derived quantity held of mint, zero when no position
// is open.
func Holding(trades []model.Trade, mint string) decimal.Decimal {
	for _, p := range Derive(trades) {
		if p.TokenMint == mint {
			return p.Qty
		}
	}
	return decimal.Zero
}

// Find returns the open position for mint.
func Find(positions []model.Position, mint string) (model.Position, bool) {
	for _, p := range positions {
		if p.TokenMint == mint {
			return p, true
		}
	}
	return model.Position{}, false
}

// Mints lists the tokens of positions in order.
func Mints(positions []model.Position) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = p.TokenMint
	}
	return out
}
