package database

import (
	"database/sql"
	"errors"
	"time"

	"trader-game/internal/config"
)

// LoadGameConfig overlays the admin-written game_settings row onto the
// defaults. The engine only reads this surface; the admin side owns writes.
// A missing row means defaults apply.
func (d *Database) LoadGameConfig(base config.Game) (config.Game, error) {
	var (
		bettingMs, roundMs, cooldownMs          sql.NullInt64
		minBet, maxBet, dailyLimit              sql.NullFloat64
		aboveOneProb, profitMargin              sql.NullFloat64
		crashProb, volatility, trendStrength    sql.NullFloat64
		reserveTarget                           sql.NullFloat64
	)

	err := d.db.QueryRow(`
		SELECT
			betting_phase_duration_ms,
			round_duration_ms,
			cooldown_ms,
			min_bet,
			max_bet,
			daily_limit,
			above_one_probability,
			profit_margin,
			crash_probability,
			volatility,
			trend_strength,
			reserve_target
		FROM game_settings
		WHERE game_type = $1`,
		base.GameType).Scan(
		&bettingMs, &roundMs, &cooldownMs,
		&minBet, &maxBet, &dailyLimit,
		&aboveOneProb, &profitMargin,
		&crashProb, &volatility, &trendStrength,
		&reserveTarget,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return base, nil
		}
		return base, err
	}

	cfg := base
	if bettingMs.Valid {
		cfg.BettingDuration = time.Duration(bettingMs.Int64) * time.Millisecond
	}
	if roundMs.Valid {
		cfg.RoundDuration = time.Duration(roundMs.Int64) * time.Millisecond
	}
	if cooldownMs.Valid {
		cfg.Cooldown = time.Duration(cooldownMs.Int64) * time.Millisecond
	}
	if minBet.Valid {
		cfg.MinBet = minBet.Float64
	}
	if maxBet.Valid {
		cfg.MaxBet = maxBet.Float64
	}
	if dailyLimit.Valid {
		cfg.DailyLimit = dailyLimit.Float64
	}
	if aboveOneProb.Valid {
		cfg.AboveOneProbability = aboveOneProb.Float64
	}
	if profitMargin.Valid {
		cfg.ProfitMargin = profitMargin.Float64
	}
	if crashProb.Valid {
		cfg.CrashProbability = crashProb.Float64
	}
	if volatility.Valid {
		cfg.Volatility = volatility.Float64
	}
	if trendStrength.Valid {
		cfg.TrendStrength = trendStrength.Float64
	}
	if reserveTarget.Valid {
		cfg.ReserveTarget = reserveTarget.Float64
	}
	return cfg, nil
}
