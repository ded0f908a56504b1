package game

import (
	"time"

	"github.com/google/uuid"

	"trader-game/internal/models"
)

// Ledger is the in-memory registry of bets and cash-outs for the active
// round. Lookups are keyed by player, so admission checks are O(1). The
// engine's mutex serializes access; the ledger itself holds no lock.
type Ledger struct {
	roundID  string
	bets     map[string]*models.Bet
	cashOuts map[string]*models.CashOut
}

func NewLedger() *Ledger {
	return &Ledger{
		bets:     make(map[string]*models.Bet),
		cashOuts: make(map[string]*models.CashOut),
	}
}

// Reset clears all entries and binds the ledger to a new round.
func (l *Ledger) Reset(roundID string) {
	l.roundID = roundID
	l.bets = make(map[string]*models.Bet)
	l.cashOuts = make(map[string]*models.CashOut)
}

// PlaceBet validates and records a bet. One bet per player per round.
func (l *Ledger) PlaceBet(playerID string, amount, minBet, maxBet float64, now time.Time) (*models.Bet, error) {
	if amount < minBet || amount > maxBet {
		return nil, ErrAmountOutOfRange
	}
	if _, exists := l.bets[playerID]; exists {
		return nil, ErrDuplicateBet
	}

	bet := &models.Bet{
		ID:       uuid.New().String(),
		PlayerID: playerID,
		RoundID:  l.roundID,
		Amount:   amount,
		PlacedAt: now,
	}
	l.bets[playerID] = bet
	return bet, nil
}

// CashOut records the terminal cash-out event for a player's bet. At most one
// per player per round.
func (l *Ledger) CashOut(playerID string, multiplier float64, now time.Time) (*models.CashOut, error) {
	bet, exists := l.bets[playerID]
	if !exists {
		return nil, ErrNoActiveBet
	}
	if _, cashed := l.cashOuts[playerID]; cashed {
		return nil, ErrAlreadyCashedOut
	}

	co := &models.CashOut{
		PlayerID:   playerID,
		RoundID:    l.roundID,
		Multiplier: multiplier,
		Payout:     bet.Amount * multiplier,
		Timestamp:  now,
	}
	l.cashOuts[playerID] = co
	return co, nil
}

func (l *Ledger) Bet(playerID string) (*models.Bet, bool) {
	b, ok := l.bets[playerID]
	return b, ok
}

func (l *Ledger) HasCashedOut(playerID string) bool {
	_, ok := l.cashOuts[playerID]
	return ok
}

func (l *Ledger) Len() int {
	return len(l.bets)
}

// TotalStaked sums all stakes in the active round.
func (l *Ledger) TotalStaked() float64 {
	var total float64
	for _, b := range l.bets {
		total += b.Amount
	}
	return total
}

// Bets returns a copy of the recorded bets.
func (l *Ledger) Bets() []models.Bet {
	out := make([]models.Bet, 0, len(l.bets))
	for _, b := range l.bets {
		out = append(out, *b)
	}
	return out
}

// CashOuts returns a copy of the recorded cash-outs.
func (l *Ledger) CashOuts() []models.CashOut {
	out := make([]models.CashOut, 0, len(l.cashOuts))
	for _, c := range l.cashOuts {
		out = append(out, *c)
	}
	return out
}
