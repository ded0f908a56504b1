package game

import (
	"math"

	"trader-game/internal/config"
	"trader-game/internal/rng"
)

const (
	// MultiplierFloor and MultiplierCeil bound every tick's output.
	MultiplierFloor = 0.0
	MultiplierCeil  = 2.0

	trendFactor    = 0.08
	noiseAmplitude = 0.05
)

// Process is the stochastic multiplier simulator for a single round. It is
// pure apart from its random source: given the same seed and tick inputs it
// reproduces the same trajectory, which is what makes rounds verifiable.
type Process struct {
	src   rng.Source
	cfg   config.Game
	trend TrendState

	target *float64
}

func NewProcess(src rng.Source, cfg config.Game) *Process {
	return &Process{src: src, cfg: cfg}
}

// SeedMultiplier draws the randomized starting value for the running phase.
// Deliberately not 1.0 exactly; the spread widens outcome variety.
func (p *Process) SeedMultiplier() float64 {
	return rng.Range(p.src, 0.7, 1.3)
}

// Target reports the committed final value, nil until the convergence window
// opens past the round's midpoint.
func (p *Process) Target() *float64 {
	return p.target
}

// Next advances the multiplier one tick. elapsedFraction is the round
// progress in [0,1], recomputed from wall clock by the caller so a missed
// tick self-corrects. totalStaked and profitMargin feed the target draw.
func (p *Process) Next(current, elapsedFraction, totalStaked, profitMargin float64) float64 {
	if p.trend.RemainingTicks <= 0 {
		p.trend.regenerate(p.src, p.cfg, current)
	}
	p.trend.RemainingTicks--

	trendComponent := float64(p.trend.Direction) * p.trend.Strength * trendFactor * p.cfg.TrendStrength
	noiseComponent := rng.Range(p.src, -1, 1) * noiseAmplitude * p.trend.Volatility * p.cfg.Volatility

	m := clamp(current+trendComponent+noiseComponent, MultiplierFloor, MultiplierCeil)

	if elapsedFraction > 0.5 {
		if p.target == nil {
			t := p.finalResult(totalStaked, profitMargin)
			p.target = &t
		}

		// remainingTimeFactor spans 1 -> 0 across the convergence window, so
		// the pull strengthens as the round runs out.
		remainingTimeFactor := clamp((1.0-elapsedFraction)*2.0, 0, 1)
		adjustment := 0.15 + 0.15*(1.0-remainingTimeFactor)
		if *p.target < m && m > 1.0 {
			// A late decrease while the display is still above 1.0 would read
			// as a free win; pull twice as hard.
			adjustment *= 2
		}
		m += (*p.target - m) * adjustment
		m = clamp(m, MultiplierFloor, MultiplierCeil)
	}

	if math.IsNaN(m) || math.IsInf(m, 0) {
		return clamp(current, MultiplierFloor, MultiplierCeil)
	}
	return m
}
