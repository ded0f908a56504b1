package game

import (
	"trader-game/internal/config"
	"trader-game/internal/rng"
)

// TrendState is the short-lived directional bias applied to the multiplier's
// random walk. It is process-internal and never persisted.
type TrendState struct {
	Direction           int // -1, 0, +1
	Strength            float64
	RemainingTicks      int
	Volatility          float64
	CrashProbability    float64
	AboveOneProbability float64
}

// regenerate rolls a fresh trend. Crash events only fire while the multiplier
// sits above 1.1 so a forced drop is actually visible.
func (t *TrendState) regenerate(src rng.Source, cfg config.Game, multiplier float64) {
	t.CrashProbability = cfg.CrashProbability
	t.AboveOneProbability = cfg.AboveOneProbability
	t.Volatility = rng.Range(src, 0.1, 1.0)

	if multiplier > 1.1 && src.Float64() < t.CrashProbability {
		t.Direction = -1
		t.Strength = rng.Range(src, 0.9, 1.0)
		t.RemainingTicks = rng.IntRange(src, 5, 8)
		return
	}

	if src.Float64() < 0.25 {
		t.Direction = 0
	} else {
		// Bias away from the extremes: the higher the multiplier the more
		// likely the next trend points down, and vice versa.
		upProbability := clamp((2.0-multiplier)/2.0, 0.1, 0.9)
		if src.Float64() < upProbability {
			t.Direction = 1
		} else {
			t.Direction = -1
		}
	}

	t.Strength = rng.Range(src, 0.1, 1.0)
	t.RemainingTicks = rng.IntRange(src, 3, 17)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
