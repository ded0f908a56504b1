package game

import (
	"go.uber.org/zap"

	"trader-game/internal/metrics"
	"trader-game/internal/models"
)

// pendingOp is a persistence write that failed during settlement or cash-out.
// The in-memory balances are already final; only the store writes retry.
type pendingOp struct {
	betID    string
	playerID string
	payout   float64

	betUpdated   bool
	credited     bool
	houseUpdated bool
}

// Settler reconciles player and house balances at round end. It owns the
// retry queue for persistence failures so a storage outage delays balance
// updates instead of losing bets.
type Settler struct {
	store    Store
	house    *HouseTracker
	gameType string
	log      *zap.Logger

	pending []pendingOp

	lastRoundID string
	paid        map[string]bool
}

func NewSettler(store Store, house *HouseTracker, gameType string, log *zap.Logger) *Settler {
	return &Settler{
		store:    store,
		house:    house,
		gameType: gameType,
		log:      log,
		paid:     make(map[string]bool),
	}
}

// Settle pays every bet without a cash-out at amount*finalMultiplier. The
// trader rule applies: a final multiplier of 0.3 returns 30% of the stake,
// never a total loss. Cashed-out bets were paid at cash-out time and are
// skipped. Invoking Settle twice for the same round is a no-op.
func (s *Settler) Settle(round *models.Round, ledger *Ledger, finalMultiplier float64) (paidCount int, totalPayout float64) {
	if round.ID != s.lastRoundID {
		s.lastRoundID = round.ID
		s.paid = make(map[string]bool)
	}

	for _, bet := range ledger.bets {
		if bet.Settled || s.paid[bet.ID] {
			continue
		}
		payout := bet.Amount * finalMultiplier
		bet.Settled = true
		bet.Payout = payout
		s.house.RecordPayout(payout)
		s.pay(bet.ID, bet.PlayerID, payout)
		paidCount++
		totalPayout += payout
	}

	// Reconcile against persistence: any bet row for this round that the
	// ledger does not know about still deserves settlement.
	rows, err := s.store.FindPendingBets(round.ID)
	if err != nil {
		s.log.Warn("settlement: pending bet lookup failed", zap.Error(err))
		return paidCount, totalPayout
	}
	for _, bet := range rows {
		if bet.Settled || s.paid[bet.ID] {
			continue
		}
		if _, inLedger := ledger.bets[bet.PlayerID]; inLedger {
			continue
		}
		payout := bet.Amount * finalMultiplier
		s.house.RecordPayout(payout)
		s.pay(bet.ID, bet.PlayerID, payout)
		paidCount++
		totalPayout += payout
	}

	// Flush writes deferred by cash-outs during the round, plus anything
	// still queued from earlier failures.
	s.RetryPending()

	return paidCount, totalPayout
}

// EnqueueCashOut defers a cash-out's persistence writes to round-end
// settlement. The in-memory balances are already final when this is called;
// deferring keeps storage latency out of the command path.
func (s *Settler) EnqueueCashOut(betID, playerID string, payout float64) {
	s.paid[betID] = true
	s.pending = append(s.pending, pendingOp{betID: betID, playerID: playerID, payout: payout})
	metrics.PayoutTotal.Add(payout)
}

// pay applies one payout's persistence writes, queueing whatever fails.
func (s *Settler) pay(betID, playerID string, payout float64) {
	s.paid[betID] = true

	op := pendingOp{betID: betID, playerID: playerID, payout: payout}
	op.betUpdated = s.try(s.store.UpdateBet(betID, true, payout), "update bet", betID)
	op.credited = s.try(s.store.IncrementUserBalance(playerID, payout), "credit player", playerID)
	op.houseUpdated = s.try(s.store.UpdateHouseBalance(s.gameType, -payout), "debit house", s.gameType)

	if !op.betUpdated || !op.credited || !op.houseUpdated {
		s.pending = append(s.pending, op)
		metrics.SettlementFailuresTotal.Inc()
	}
	metrics.PayoutTotal.Add(payout)
}

func (s *Settler) try(err error, action, subject string) bool {
	if err != nil {
		s.log.Error("settlement write failed, queued for retry",
			zap.String("action", action),
			zap.String("subject", subject),
			zap.Error(err))
		return false
	}
	return true
}

// RecoverAbandoned settles bets a previous process left unsettled. Bets from
// finished rounds pay at the recorded round result; bets from rounds that
// never finished refund the stake, there being no trajectory to settle
// against. Runs once at engine startup, before the first round.
func (s *Settler) RecoverAbandoned() {
	abandoned, err := s.store.FindAbandonedBets()
	if err != nil {
		s.log.Warn("abandoned bet lookup failed", zap.Error(err))
		return
	}

	for _, ab := range abandoned {
		multiplier := 1.0
		if ab.Result != nil {
			multiplier = *ab.Result
		}
		payout := ab.Bet.Amount * multiplier
		s.house.RecordPayout(payout)
		s.pay(ab.Bet.ID, ab.Bet.PlayerID, payout)
	}

	if len(abandoned) > 0 {
		s.log.Info("recovered abandoned bets", zap.Int("count", len(abandoned)))
	}
}

// RetryPending replays queued persistence writes. Called at round-end
// settlement and again at the start of each betting phase.
func (s *Settler) RetryPending() {
	if len(s.pending) == 0 {
		return
	}

	remaining := s.pending[:0]
	for _, op := range s.pending {
		if !op.betUpdated {
			op.betUpdated = s.store.UpdateBet(op.betID, true, op.payout) == nil
		}
		if !op.credited {
			op.credited = s.store.IncrementUserBalance(op.playerID, op.payout) == nil
		}
		if !op.houseUpdated {
			op.houseUpdated = s.store.UpdateHouseBalance(s.gameType, -op.payout) == nil
		}
		if !op.betUpdated || !op.credited || !op.houseUpdated {
			remaining = append(remaining, op)
		}
	}
	retried := len(s.pending) - len(remaining)
	s.pending = remaining

	if retried > 0 {
		s.log.Info("settlement retries applied",
			zap.Int("applied", retried),
			zap.Int("still_pending", len(s.pending)))
	}
}

// PendingCount reports writes still waiting on persistence.
func (s *Settler) PendingCount() int {
	return len(s.pending)
}
