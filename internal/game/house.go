package game

import "trader-game/internal/models"

// reserveBiasCap bounds how far the reserve can push the effective margin in
// either direction.
const reserveBiasCap = 0.05

// HouseTracker is the running ledger of house funds and aggregate payout
// statistics for one game type. It acts as a soft regulator: a thin reserve
// raises the effective profit margin, which lowers the above-one probability
// in the target draw. Bets are never rejected because the reserve is low.
type HouseTracker struct {
	gameType      string
	balance       float64
	profitMargin  float64
	reserveTarget float64

	totalBetsCount int64
	totalBetAmount float64
	totalPayout    float64
}

func NewHouseTracker(snapshot models.HouseBalance, reserveTarget float64) *HouseTracker {
	return &HouseTracker{
		gameType:       snapshot.GameType,
		balance:        snapshot.Balance,
		profitMargin:   snapshot.ProfitMargin,
		reserveTarget:  reserveTarget,
		totalBetsCount: snapshot.TotalBetsCount,
		totalBetAmount: snapshot.TotalBetAmount,
		totalPayout:    snapshot.TotalPayout,
	}
}

// RecordBet credits the stake to the reserve.
func (h *HouseTracker) RecordBet(amount float64) {
	h.balance += amount
	h.totalBetsCount++
	h.totalBetAmount += amount
}

// RecordPayout debits a payout from the reserve.
func (h *HouseTracker) RecordPayout(amount float64) {
	h.balance -= amount
	h.totalPayout += amount
}

// EffectiveProfitMargin is the configured margin plus the reserve bias. Below
// the target the margin grows, self-correcting over many rounds; above it the
// margin shrinks and players see friendlier odds.
func (h *HouseTracker) EffectiveProfitMargin() float64 {
	if h.reserveTarget <= 0 {
		return h.profitMargin
	}
	deviation := (h.reserveTarget - h.balance) / h.reserveTarget
	return h.profitMargin + clamp(deviation*reserveBiasCap, -reserveBiasCap, reserveBiasCap)
}

func (h *HouseTracker) Balance() float64 {
	return h.balance
}

func (h *HouseTracker) BelowReserve() bool {
	return h.reserveTarget > 0 && h.balance < h.reserveTarget
}

func (h *HouseTracker) Snapshot() models.HouseBalance {
	return models.HouseBalance{
		GameType:       h.gameType,
		Balance:        h.balance,
		ProfitMargin:   h.profitMargin,
		TotalBetsCount: h.totalBetsCount,
		TotalBetAmount: h.totalBetAmount,
		TotalPayout:    h.totalPayout,
	}
}
