package game

import "trader-game/internal/models"

// Store is the outbound persistence port. Implementations may fail at any
// call; the engine logs, retries where it matters, and keeps the phase cycle
// alive on in-memory state.
type Store interface {
	CreateRound(round *models.Round) error
	UpdateRoundStatus(roundID, status string, result *float64) error
	SaveBet(bet *models.Bet) error
	FindPendingBets(roundID string) ([]models.Bet, error)
	FindAbandonedBets() ([]models.AbandonedBet, error)
	UpdateBet(betID string, settled bool, payout float64) error
	IncrementUserBalance(userID string, amount float64) error
	UpdateHouseBalance(gameType string, delta float64) error
}

// Broadcaster delivers engine events to connected clients. Implementations
// must not block; slow consumers are the gateway's problem.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// LimitChecker guards the daily aggregate wager limit. It is an external
// collaborator: a failing implementation should fail open rather than stall
// betting.
type LimitChecker interface {
	CheckDailyLimit(playerID string, amount float64) error
	RecordWager(playerID string, amount float64)
}

// AlertSink receives advisory house reserve alerts.
type AlertSink interface {
	LowReserve(gameType string, balance, target float64)
}
