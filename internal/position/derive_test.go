package position_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/position"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func trade(mint string, side model.Side, qty, price string, ts int64) model.Trade {
	return model.Trade{TokenMint: mint, Side: side, Qty: d(qty), PriceUSD: d(price), Timestamp: ts}
}

func TestDerive_AverageCost(t *testing.T) {
	trades := []model.Trade{
		trade("A", model.SideBuy, "1", "100", 10),
		trade("A", model.SideBuy, "3", "200", 20),
	}

	got := position.Derive(trades)
	require.Len(t, got, 1)
	p := got[0]
	assert.True(t, p.Qty.Equal(d("4")), "qty %s", p.Qty)
	assert.True(t, p.Cost.Equal(d("700")), "cost %s", p.Cost)
	assert.True(t, p.EntryPriceUSD.Equal(d("175")), "entry %s", p.EntryPriceUSD)
	assert.Equal(t, int64(10), p.OpenedAt)
	assert.Equal(t, int64(20), p.LastAt)
}

func TestDerive_SellKeepsCostBasis(t *testing.T) {
	trades := []model.Trade{
		trade("A", model.SideBuy, "1.2", "200", 1),
		trade("A", model.SideSell, "0.5", "300", 2),
	}

	got := position.Derive(trades)
	require.Len(t, got, 1)
	assert.True(t, got[0].Qty.Equal(d("0.7")))
	assert.True(t, got[0].Cost.Equal(d("240")), "sells must not touch cost")
	// 240 / 0.7: the entry price drifts upward because cost is untouched.
	assert.True(t, got[0].EntryPriceUSD.Equal(d("240").Div(d("0.7"))))
	assert.Equal(t, int64(2), got[0].LastAt)
}

func TestDerive_ClosedAndOversoldDropped(t *testing.T) {
	trades := []model.Trade{
		trade("A", model.SideBuy, "1", "10", 1),
		trade("A", model.SideSell, "1", "10", 2),
		trade("B", model.SideBuy, "1", "10", 3),
		trade("B", model.SideSell, "5", "10", 4),
		trade("C", model.SideBuy, "2", "10", 5),
	}

	got := position.Derive(trades)
	require.Len(t, got, 1)
	assert.Equal(t, "C", got[0].TokenMint)
	for _, p := range got {
		assert.True(t, p.Qty.IsPositive())
	}
}

func TestDerive_OversoldThenRebought(t *testing.T) {
	// Clamping at zero means the oversell is forgotten, not carried as a short.
	trades := []model.Trade{
		trade("A", model.SideBuy, "1", "10", 1),
		trade("A", model.SideSell, "3", "10", 2),
		trade("A", model.SideBuy, "2", "10", 3),
	}
	got := position.Derive(trades)
	require.Len(t, got, 1)
	assert.True(t, got[0].Qty.Equal(d("2")))
	assert.True(t, got[0].Cost.Equal(d("30")))
}

func TestDerive_SkipsMalformed(t *testing.T) {
	trades := []model.Trade{
		trade("", model.SideBuy, "1", "10", 1),
		trade("A", model.SideBuy, "0", "10", 2),
		trade("A", model.SideBuy, "-1", "10", 3),
		trade("A", model.SideBuy, "1", "0", 4),
		trade("A", model.Side("HOLD"), "1", "10", 5),
		trade("A", model.Side("buy"), "2", "5", 6),
	}

	got := position.Derive(trades)
	require.Len(t, got, 1)
	assert.True(t, got[0].Qty.Equal(d("2")))
	assert.Equal(t, int64(6), got[0].OpenedAt, "skipped trades must not affect timestamps")
}

func TestDerive_OrderAndIdempotence(t *testing.T) {
	trades := []model.Trade{
		trade("B", model.SideBuy, "1", "1", 1),
		trade("A", model.SideBuy, "1", "1", 2),
		trade("B", model.SideBuy, "1", "1", 3),
		trade("C", model.SideBuy, "1", "1", 4),
	}

	first := position.Derive(trades)
	second := position.Derive(trades)
	assert.Equal(t, []string{"B", "A", "C"}, position.Mints(first))
	assert.Equal(t, first, second)
}

func TestDerive_Empty(t *testing.T) {
	assert.Empty(t, position.Derive(nil))
}

func TestHolding(t *testing.T) {
	trades := []model.Trade{
		trade("A", model.SideBuy, "1.2", "200", 1),
		trade("A", model.SideSell, "0.5", "300", 2),
	}
	assert.True(t, position.Holding(trades, "A").Equal(d("0.7")))
	assert.True(t, position.Holding(trades, "missing").IsZero())
}

func TestValue(t *testing.T) {
	positions := position.Derive([]model.Trade{
		trade("A", model.SideBuy, "2", "100", 1),
		trade("B", model.SideBuy, "10", "1", 2),
	})
	quotes := map[string]model.Quote{
		"A": {TokenMint: "A", PriceUSD: d("150"), BaseToken: model.Token{Symbol: "AAA"}, Verified: true, RiskScore: 20, RiskLabel: "Low"},
	}

	pf := position.Value(positions, quotes, d("700"))
	require.Len(t, pf.Positions, 2)

	a := pf.Positions[0]
	assert.True(t, a.Priced)
	assert.Equal(t, "AAA", a.Symbol)
	assert.True(t, a.Verified)
	assert.Equal(t, 20, a.RiskScore)
	assert.Equal(t, "Low", a.RiskLabel)
	assert.True(t, a.ValueUSD.Equal(d("300")))
	assert.True(t, a.UnrealizedPnL.Equal(d("100")))
	assert.True(t, a.PnLPercent.Equal(d("50")))

	b := pf.Positions[1]
	assert.False(t, b.Priced)
	assert.Empty(t, b.RiskLabel)
	assert.True(t, b.ValueUSD.IsZero())

	assert.True(t, pf.PositionsValueUSD.Equal(d("300")))
	assert.True(t, pf.CostUSD.Equal(d("210")))
	assert.True(t, pf.UnrealizedPnL.Equal(d("100")))
	assert.True(t, pf.EquityUSD.Equal(d("1000")))
}
