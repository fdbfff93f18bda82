package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tokenuniverse/paper-engine/internal/risk"
)

var now = time.UnixMilli(1_700_000_000_000)

func ago(d time.Duration) int64 { return now.Add(-d).UnixMilli() }

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		in    risk.Input
		score int
		label risk.Label
	}{
		{
			name:  "no data",
			in:    risk.Input{},
			score: 90, // 50 +20 liq +10 vol +10 txns
			label: risk.Extreme,
		},
		{
			name: "deep verified market",
			in: risk.Input{
				LiquidityUSD: 50_000_000, VolumeH24: 20_000_000, TxnsH24: 40_000,
				PairCreatedAt: ago(400 * 24 * time.Hour), Verified: true,
			},
			score: 0, // 50 -20 -10 -10 -5 -15 clamps at 0
			label: risk.Low,
		},
		{
			name: "fresh and volatile",
			in: risk.Input{
				LiquidityUSD: 50_000, VolumeH24: 500_000, TxnsH24: 1_000,
				PairCreatedAt: ago(2 * time.Hour), PriceChangeH24: -120,
			},
			score: 90, // 50 +10 liq +0 vol +0 txns +20 age +10 change
			label: risk.Extreme,
		},
		{
			name: "mid market a day old",
			in: risk.Input{
				LiquidityUSD: 300_000, VolumeH24: 2_000_000, TxnsH24: 6_000,
				PairCreatedAt: ago(12 * time.Hour), PriceChangeH24: 60,
			},
			score: 50, // 50 -5 -5 -5 +10 +5
			label: risk.Medium,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := risk.Score(tt.in, now)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.label, got.Label)
		})
	}
}

func TestLabelFor_Boundaries(t *testing.T) {
	assert.Equal(t, risk.Low, risk.LabelFor(25))
	assert.Equal(t, risk.Medium, risk.LabelFor(26))
	assert.Equal(t, risk.Medium, risk.LabelFor(55))
	assert.Equal(t, risk.High, risk.LabelFor(56))
	assert.Equal(t, risk.High, risk.LabelFor(80))
	assert.Equal(t, risk.Extreme, risk.LabelFor(81))
}
