package models

import "time"

// Round is one complete betting/running/settlement cycle. The multiplier
// trajectory is derived deterministically from Seed; Hash is published at
// round start so players can verify the seed revealed at round end.
type Round struct {
	ID             string    `json:"roundId"`
	Status         string    `json:"status"` // "betting", "running", "ended"
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Multiplier     float64   `json:"multiplier"`
	TargetEndValue *float64  `json:"-"`
	Seed           string    `json:"-"`
	Hash           string    `json:"hash"`
	Result         *float64  `json:"result,omitempty"`
}

// Bet is immutable once placed except for the settlement fields, which are
// written exactly once: either at cash-out time or at round-end settlement.
type Bet struct {
	ID       string    `json:"id"`
	PlayerID string    `json:"playerId"`
	RoundID  string    `json:"roundId"`
	Amount   float64   `json:"amount"`
	PlacedAt time.Time `json:"placedAt"`
	Settled  bool      `json:"settled"`
	Payout   float64   `json:"payout"`
}

// CashOut is the terminal event for a player's bet in a round.
type CashOut struct {
	PlayerID   string    `json:"playerId"`
	RoundID    string    `json:"roundId"`
	Multiplier float64   `json:"multiplier"`
	Payout     float64   `json:"payout"`
	Timestamp  time.Time `json:"timestamp"`
}

// HouseBalance is the operator's running reserve, scoped per game type.
type HouseBalance struct {
	GameType       string  `json:"gameType"`
	Balance        float64 `json:"balance"`
	ProfitMargin   float64 `json:"profitMargin"`
	TotalBetsCount int64   `json:"totalBetsCount"`
	TotalBetAmount float64 `json:"totalBetAmount"`
	TotalPayout    float64 `json:"totalPayout"`
}

// AbandonedBet is an unsettled bet left behind by a previous process, paired
// with its round's result when the round finished.
type AbandonedBet struct {
	Bet    Bet
	Result *float64
}

// RoundHistory is the archived form of a finished round.
type RoundHistory struct {
	RoundID         string    `json:"roundId"`
	FinalMultiplier float64   `json:"finalMultiplier"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Hash            string    `json:"hash"`
	Seed            string    `json:"seed"`
	Bets            []Bet     `json:"bets"`
	CashOuts        []CashOut `json:"cashOuts"`
}
