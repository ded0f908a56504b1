package game

import (
	"math"

	"trader-game/internal/rng"
)

type tier struct {
	lo, hi, weight float64
}

// Five-tier weighted distribution for the final value. Below-one tiers mirror
// the above-one tiers so the jackpot band [1.9,2.0] is as rare as the wipeout
// band [0.0,0.1].
var (
	aboveOneTiers = []tier{
		{1.9, 2.0, 0.05},
		{1.7, 1.9, 0.10},
		{1.4, 1.7, 0.20},
		{1.2, 1.4, 0.30},
		{1.0, 1.2, 0.35},
	}
	belowOneTiers = []tier{
		{0.0, 0.1, 0.05},
		{0.1, 0.3, 0.10},
		{0.3, 0.6, 0.20},
		{0.6, 0.8, 0.30},
		{0.8, 1.0, 0.35},
	}
)

// finalResult draws the value the multiplier converges toward. When nobody
// staked anything this round there is no edge to protect, so the draw is a
// plain uniform over the full range.
func (p *Process) finalResult(totalStaked, profitMargin float64) float64 {
	if totalStaked <= 0 {
		return rng.Range(p.src, MultiplierFloor, MultiplierCeil)
	}

	jitter := rng.Range(p.src, -0.15, 0.15)
	adjusted := clamp(p.trend.AboveOneProbability+jitter-profitMargin, 0.2, 0.8)

	tiers := belowOneTiers
	if p.src.Float64() < adjusted {
		tiers = aboveOneTiers
	}

	weights := make([]float64, len(tiers))
	for i, t := range tiers {
		weights[i] = t.weight
	}
	chosen := tiers[rng.Weighted(p.src, weights)]

	v := rng.Range(p.src, chosen.lo, chosen.hi)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 1.0
	}
	return clamp(v, MultiplierFloor, MultiplierCeil)
}
