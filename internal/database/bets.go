package database

import (
	"database/sql"

	"trader-game/internal/models"
)

func (d *Database) SaveBet(bet *models.Bet) error {
	_, err := d.db.Exec(`
		INSERT INTO bets (id, round_id, player_id, amount, placed_at, settled, payout)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, bet.ID, bet.RoundID, bet.PlayerID, bet.Amount, bet.PlacedAt, bet.Settled, bet.Payout)
	return err
}

// FindPendingBets returns the round's bets that have no settlement yet.
func (d *Database) FindPendingBets(roundID string) ([]models.Bet, error) {
	rows, err := d.db.Query(`
		SELECT id, round_id, player_id, amount, placed_at, settled, payout
		FROM bets
		WHERE round_id = $1::uuid AND settled = false
	`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []models.Bet
	for rows.Next() {
		var b models.Bet
		if err := rows.Scan(&b.ID, &b.RoundID, &b.PlayerID, &b.Amount,
			&b.PlacedAt, &b.Settled, &b.Payout); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// FindAbandonedBets returns every unsettled bet regardless of round, with
// the round result when one was recorded. Queried once at startup to recover
// bets a previous process left behind.
func (d *Database) FindAbandonedBets() ([]models.AbandonedBet, error) {
	rows, err := d.db.Query(`
		SELECT b.id, b.round_id, b.player_id, b.amount, b.placed_at, r.result
		FROM bets b
		JOIN rounds r ON b.round_id = r.round_id
		WHERE b.settled = false
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var abandoned []models.AbandonedBet
	for rows.Next() {
		var ab models.AbandonedBet
		var result sql.NullFloat64
		if err := rows.Scan(&ab.Bet.ID, &ab.Bet.RoundID, &ab.Bet.PlayerID,
			&ab.Bet.Amount, &ab.Bet.PlacedAt, &result); err != nil {
			return nil, err
		}
		if result.Valid {
			ab.Result = &result.Float64
		}
		abandoned = append(abandoned, ab)
	}
	return abandoned, rows.Err()
}

func (d *Database) UpdateBet(betID string, settled bool, payout float64) error {
	_, err := d.db.Exec(`
		UPDATE bets SET settled = $1, payout = $2 WHERE id = $3::uuid
	`, settled, payout, betID)
	return err
}
