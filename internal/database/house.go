package database

import "trader-game/internal/models"

// GetHouseBalance loads the persisted reserve snapshot for a game type,
// creating a zero row on first run.
func (d *Database) GetHouseBalance(gameType string) (models.HouseBalance, error) {
	hb := models.HouseBalance{GameType: gameType}

	err := d.db.QueryRow(`
		SELECT balance, profit_margin, total_bets_count, total_bet_amount, total_payout
		FROM house_balance
		WHERE game_type = $1
	`, gameType).Scan(&hb.Balance, &hb.ProfitMargin, &hb.TotalBetsCount,
		&hb.TotalBetAmount, &hb.TotalPayout)
	if err == nil {
		return hb, nil
	}

	_, insertErr := d.db.Exec(`
		INSERT INTO house_balance (game_type, balance, profit_margin)
		VALUES ($1, 0, 0.05)
		ON CONFLICT (game_type) DO NOTHING
	`, gameType)
	if insertErr != nil {
		return hb, insertErr
	}
	return hb, nil
}

// UpdateHouseBalance applies a delta to the reserve: positive for stakes in,
// negative for payouts out.
func (d *Database) UpdateHouseBalance(gameType string, delta float64) error {
	_, err := d.db.Exec(`
		UPDATE house_balance
		SET balance = balance + $1,
		    total_bet_amount = total_bet_amount + GREATEST($1, 0),
		    total_bets_count = total_bets_count + CASE WHEN $1 > 0 THEN 1 ELSE 0 END,
		    total_payout = total_payout + GREATEST(-$1, 0),
		    updated_at = NOW()
		WHERE game_type = $2
	`, delta, gameType)
	return err
}

type PlayerStats struct {
	PlayerID      string  `json:"playerId"`
	TotalBets     int     `json:"totalBets"`
	TotalWagered  float64 `json:"totalWagered"`
	TotalWon      float64 `json:"totalWon"`
	BiggestWin    float64 `json:"biggestWin"`
	BestMultiplier float64 `json:"bestMultiplier"`
}

// GetLeaderboard ranks players by winnings inside a timeframe.
func (d *Database) GetLeaderboard(timeFrame string) ([]PlayerStats, error) {
	var timeFilter string
	switch timeFrame {
	case "daily":
		timeFilter = "AND placed_at > NOW() - INTERVAL '24 hours'"
	case "weekly":
		timeFilter = "AND placed_at > NOW() - INTERVAL '7 days'"
	case "monthly":
		timeFilter = "AND placed_at > NOW() - INTERVAL '30 days'"
	default:
		timeFilter = ""
	}

	query := `
		SELECT
			player_id,
			COUNT(*) AS total_bets,
			SUM(amount) AS total_wagered,
			SUM(COALESCE(payout, 0)) AS total_won,
			MAX(payout) AS biggest_win,
			MAX(CASE WHEN amount > 0 THEN payout / amount ELSE 0 END) AS best_multiplier
		FROM bets
		WHERE settled = true ` + timeFilter + `
		GROUP BY player_id
		ORDER BY total_won DESC
		LIMIT 100
	`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []PlayerStats
	for rows.Next() {
		var s PlayerStats
		if err := rows.Scan(&s.PlayerID, &s.TotalBets, &s.TotalWagered,
			&s.TotalWon, &s.BiggestWin, &s.BestMultiplier); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
