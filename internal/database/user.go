package database

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"trader-game/internal/auth"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

type UserProfile struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Balance      float64 `json:"balance"`
	TotalWagered float64 `json:"totalWagered"`
	TotalWon     float64 `json:"totalWon"`
	RoundsPlayed int     `json:"roundsPlayed"`
	JoinDate     string  `json:"joinDate"`
}

// IncrementUserBalance adjusts a player's balance by amount, negative for a
// stake debit. The row is locked for the duration and every change lands in
// the transactions trail.
func (d *Database) IncrementUserBalance(userID string, amount float64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var currentBalance float64
	err = tx.QueryRow(`
		SELECT balance FROM users
		WHERE id = $1::uuid
		FOR UPDATE`, userID).Scan(&currentBalance)
	if err != nil {
		return err
	}

	newBalance := currentBalance + amount
	if newBalance < 0 {
		return ErrInsufficientBalance
	}

	_, err = tx.Exec(`
		UPDATE users SET balance = $1 WHERE id = $2::uuid`, newBalance, userID)
	if err != nil {
		return err
	}

	txType := "credit"
	if amount < 0 {
		txType = "debit"
	}
	_, err = tx.Exec(`
		INSERT INTO transactions (user_id, amount, type, balance_after)
		VALUES ($1::uuid, $2, $3, $4)`,
		userID, amount, txType, newBalance)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (d *Database) GetUserBalance(userID string) (float64, error) {
	var balance float64
	err := d.db.QueryRow("SELECT balance FROM users WHERE id = $1::uuid", userID).Scan(&balance)
	return balance, err
}

func (d *Database) GetUserProfile(userID string) (*UserProfile, error) {
	var profile UserProfile
	err := d.db.QueryRow(`
		SELECT
			u.id,
			u.username,
			u.balance,
			COALESCE(SUM(b.amount), 0) AS total_wagered,
			COALESCE(SUM(b.payout), 0) AS total_won,
			COUNT(DISTINCT b.round_id) AS rounds_played,
			u.created_at
		FROM users u
		LEFT JOIN bets b ON u.id = b.player_id
		WHERE u.id = $1::uuid
		GROUP BY u.id`, userID).Scan(
		&profile.ID,
		&profile.Username,
		&profile.Balance,
		&profile.TotalWagered,
		&profile.TotalWon,
		&profile.RoundsPlayed,
		&profile.JoinDate,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (d *Database) CreateUser(username, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		INSERT INTO users (id, username, password_hash, balance)
		VALUES ($1::uuid, $2, $3, $4)`,
		uuid.New().String(), username, string(hashedPassword), 1000.0)
	return err
}

func (d *Database) GetUserByUsername(username string) (*auth.User, error) {
	var user auth.User
	err := d.db.QueryRow(`
		SELECT id, username, password_hash, balance, created_at
		FROM users WHERE username = $1`,
		username).Scan(&user.ID, &user.Username, &user.Password, &user.Balance, &user.Created)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
