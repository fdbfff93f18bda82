package position

import (
	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Value marks positions to market with the given quotes (keyed by mint) and
// aggregates them with cash. A position without a positive quote is reported
// unpriced and contributes zero value, but its cost still counts.
func Value(positions []model.Position, quotes map[string]model.Quote, cash decimal.Decimal) model.Portfolio {
	pf := model.Portfolio{
		CashUSD:           cash,
		Positions:         make([]model.PositionValue, 0, len(positions)),
		PositionsValueUSD: decimal.Zero,
		CostUSD:           decimal.Zero,
		UnrealizedPnL:     decimal.Zero,
	}

	for _, p := range positions {
		pv := model.PositionValue{
			Position:      p,
			PriceUSD:      decimal.Zero,
			ValueUSD:      decimal.Zero,
			UnrealizedPnL: decimal.Zero,
			PnLPercent:    decimal.Zero,
		}
		if q, ok := quotes[p.TokenMint]; ok && q.PriceUSD.IsPositive() {
			pv.Priced = true
			pv.PriceUSD = q.PriceUSD
			pv.Symbol = q.BaseToken.Symbol
			pv.Verified = q.Verified
			pv.RiskScore = q.RiskScore
			pv.RiskLabel = q.RiskLabel
			pv.ValueUSD = p.Qty.Mul(q.PriceUSD)
			pv.UnrealizedPnL = pv.ValueUSD.Sub(p.Cost)
			if p.Cost.IsPositive() {
				pv.PnLPercent = pv.UnrealizedPnL.Div(p.Cost).Mul(hundred).Round(2)
			}
			pf.PositionsValueUSD = pf.PositionsValueUSD.Add(pv.ValueUSD)
			pf.UnrealizedPnL = pf.UnrealizedPnL.Add(pv.UnrealizedPnL)
		}
		pf.CostUSD = pf.CostUSD.Add(p.Cost)
		pf.Positions = append(pf.Positions, pv)
	}

	pf.EquityUSD = cash.Add(pf.PositionsValueUSD)
	return pf
}
