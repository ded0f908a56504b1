package database

import (
	"database/sql"

	"trader-game/internal/models"
)

func (d *Database) CreateRound(round *models.Round) error {
	_, err := d.db.Exec(`
		INSERT INTO rounds (round_id, status, start_time, seed, hash)
		VALUES ($1::uuid, $2, $3, $4, $5)
	`, round.ID, round.Status, round.StartTime, round.Seed, round.Hash)
	return err
}

func (d *Database) UpdateRoundStatus(roundID, status string, result *float64) error {
	if result == nil {
		_, err := d.db.Exec(`
			UPDATE rounds SET status = $1 WHERE round_id = $2::uuid
		`, status, roundID)
		return err
	}

	_, err := d.db.Exec(`
		UPDATE rounds SET status = $1, result = $2, end_time = NOW()
		WHERE round_id = $3::uuid
	`, status, *result, roundID)
	return err
}

func (d *Database) GetRoundByID(roundID string) (*models.Round, error) {
	var round models.Round
	var result sql.NullFloat64
	var endTime sql.NullTime

	err := d.db.QueryRow(`
		SELECT round_id, status, start_time, end_time, seed, hash, result
		FROM rounds
		WHERE round_id = $1::uuid
	`, roundID).Scan(&round.ID, &round.Status, &round.StartTime, &endTime,
		&round.Seed, &round.Hash, &result)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		round.EndTime = endTime.Time
	}
	if result.Valid {
		round.Result = &result.Float64
	}
	return &round, nil
}

// GetPlayerRoundHistory returns the rounds a player staked in, newest first.
func (d *Database) GetPlayerRoundHistory(playerID string, limit int) ([]models.RoundHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := d.db.Query(`
		SELECT r.round_id, r.start_time, r.end_time, r.hash, r.seed,
		       COALESCE(r.result, 0),
		       b.id, b.amount, b.placed_at, b.settled, b.payout
		FROM rounds r
		JOIN bets b ON r.round_id = b.round_id
		WHERE b.player_id = $1::uuid
		ORDER BY r.start_time DESC
		LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.RoundHistory
	for rows.Next() {
		var h models.RoundHistory
		var bet models.Bet
		var endTime sql.NullTime

		err := rows.Scan(&h.RoundID, &h.StartTime, &endTime, &h.Hash, &h.Seed,
			&h.FinalMultiplier,
			&bet.ID, &bet.Amount, &bet.PlacedAt, &bet.Settled, &bet.Payout)
		if err != nil {
			return nil, err
		}

		if endTime.Valid {
			h.EndTime = endTime.Time
		}
		bet.PlayerID = playerID
		bet.RoundID = h.RoundID
		h.Bets = []models.Bet{bet}
		history = append(history, h)
	}
	return history, rows.Err()
}
