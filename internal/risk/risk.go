// Package risk scores how risky a token pair looks from its market data.
// Scores run from 0 (lowest risk) to 100 (highest).
package risk

import "time"

// Label buckets a score.
type Label string

const (
	Low     Label = "Low"
	Medium  Label = "Medium"
	High    Label = "High"
	Extreme Label = "Extreme"
)

const baseline = 50

// Input is the market data a score is computed from.
type Input struct {
	LiquidityUSD   float64
	VolumeH24      float64
	TxnsH24        int
	PairCreatedAt  int64 // ms since epoch; zero means unknown
	PriceChangeH24 float64
	Verified       bool
}

// Assessment is a score and its label.
type Assessment struct {
	Score int   `json:"score"`
	Label Label `json:"label"`
}

// Score applies the heuristic bands to in. now is used for the pair's age.
func Score(in Input, now time.Time) Assessment {
	score := baseline

	switch liq := in.LiquidityUSD; {
	case liq >= 10_000_000:
		score -= 20
	case liq >= 1_000_000:
		score -= 10
	case liq >= 200_000:
		score -= 5
	case liq <= 25_000:
		score += 20
	case liq <= 75_000:
		score += 10
	}

	switch vol := in.VolumeH24; {
	case vol >= 10_000_000:
		score -= 10
	case vol >= 1_000_000:
		score -= 5
	case vol <= 25_000:
		score += 10
	}

	switch tx := in.TxnsH24; {
	case tx >= 25_000:
		score -= 10
	case tx >= 5_000:
		score -= 5
	case tx <= 200:
		score += 10
	}

	// New pairs are riskier.
	if in.PairCreatedAt > 0 {
		if age := now.Sub(time.UnixMilli(in.PairCreatedAt)); age > 0 {
			switch {
			case age < 6*time.Hour:
				score += 20
			case age < 24*time.Hour:
				score += 10
			case age > 30*24*time.Hour:
				score -= 5
			}
		}
	}

	chg := in.PriceChangeH24
	if chg < 0 {
		chg = -chg
	}
	switch {
	case chg >= 100:
		score += 10
	case chg >= 50:
		score += 5
	}

	if in.Verified {
		score -= 15
	}

	score = min(max(score, 0), 100)
	return Assessment{Score: score, Label: LabelFor(score)}
}

// LabelFor maps a score to its label.
func LabelFor(score int) Label {
	switch {
	case score <= 25:
		return Low
	case score <= 55:
		return Medium
	case score <= 80:
		return High
	default:
		return Extreme
	}
}
