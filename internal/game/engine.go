package game

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trader-game/internal/config"
	"trader-game/internal/metrics"
	"trader-game/internal/models"
	"trader-game/internal/rng"
)

// Broadcast event names on the engine -> client surface.
const (
	EventGameState        = "gameState"
	EventMultiplierUpdate = "multiplierUpdate"
	EventTimeUpdate       = "timeUpdate"
	EventBetPlaced        = "betPlaced"
	EventCashOutMade      = "cashOutMade"
	EventGameEnded        = "gameEnded"
)

const historyLimit = 50

// State is the snapshot sent on connect and on every phase change.
type State struct {
	Phase            Phase            `json:"phase"`
	RoundID          string           `json:"roundId"`
	Hash             string           `json:"hash"`
	Multiplier       float64          `json:"multiplier"`
	TimeLeftMs       int64            `json:"timeLeft"`
	Bets             []models.Bet     `json:"bets"`
	CashOuts         []models.CashOut `json:"cashOuts"`
	ConnectedPlayers int              `json:"connectedPlayers"`
}

// Engine drives the betting -> running -> ended cycle and owns all round
// state. Timers and player commands are serialized through one mutex, so the
// tick loop and concurrent connections never race on the ledger. All
// deadlines are level-triggered against wall clock: a late Advance call
// self-corrects instead of accumulating drift.
type Engine struct {
	mu sync.Mutex

	cfg       config.Game
	store     Store
	broadcast Broadcaster
	limits    LimitChecker
	alerts    AlertSink
	log       *zap.Logger

	now       func() time.Time
	newSource func(seedHex string) rng.Source
	newSeed   func() (seedHex, hash string)
	online    func() int

	phase   Phase
	round   *models.Round
	ledger  *Ledger
	process *Process
	house   *HouseTracker
	settler *Settler

	phaseDeadline  time.Time
	runStart       time.Time
	lastTimeUpdate time.Time
	roundCreated   bool
	alertSent      bool

	history []models.RoundHistory
}

type Option func(*Engine)

// WithClock injects a synthetic time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLimits(lc LimitChecker) Option {
	return func(e *Engine) { e.limits = lc }
}

func WithAlerts(sink AlertSink) Option {
	return func(e *Engine) { e.alerts = sink }
}

// WithOnlineCount wires the gateway's connected-client counter into the
// gameState snapshot.
func WithOnlineCount(fn func() int) Option {
	return func(e *Engine) { e.online = fn }
}

// WithSeedFunc overrides round seed generation, making whole rounds
// reproducible in tests.
func WithSeedFunc(fn func() (seedHex, hash string)) Option {
	return func(e *Engine) { e.newSeed = fn }
}

func New(cfg config.Game, store Store, broadcast Broadcaster, house models.HouseBalance, log *zap.Logger, opts ...Option) *Engine {
	tracker := NewHouseTracker(house, cfg.ReserveTarget)
	e := &Engine{
		cfg:       cfg,
		store:     store,
		broadcast: broadcast,
		log:       log,
		now:       time.Now,
		newSource: rng.FromSeedHex,
		newSeed:   defaultSeed,
		online:    func() int { return 0 },
		ledger:    NewLedger(),
		house:     tracker,
		settler:   NewSettler(store, tracker, cfg.GameType, log),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultSeed() (string, string) {
	b, err := rng.NewSeed()
	if err != nil {
		b = []byte("fallback-seed-fallback-seed-1234")
	}
	return hex.EncodeToString(b), rng.HashHex(b)
}

// Run drives the engine until the context is cancelled. The ticker is the
// only internal source of concurrency; everything funnels through Advance.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.mu.Lock()
	e.settler.RecoverAbandoned()
	e.mu.Unlock()

	e.Advance(e.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Advance(e.now())
		}
	}
}

// Advance is the single state-machine step. Deadlines are checked against
// the supplied time, never against accumulated deltas.
func (e *Engine) Advance(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round == nil {
		e.beginBetting(now)
		return
	}

	switch e.phase {
	case PhaseBetting:
		if now.Before(e.phaseDeadline) {
			e.maybeTimeUpdate(now)
			return
		}
		e.beginRunning(now)
	case PhaseRunning:
		if now.Before(e.phaseDeadline) {
			e.tick(now)
			e.maybeTimeUpdate(now)
			return
		}
		e.endRound(now)
	case PhaseEnded:
		if now.Before(e.phaseDeadline) {
			e.maybeTimeUpdate(now)
			return
		}
		e.beginBetting(now)
	}
}

func (e *Engine) beginBetting(now time.Time) {
	e.settler.RetryPending()

	seedHex, hash := e.newSeed()
	e.round = &models.Round{
		ID:         uuid.New().String(),
		Status:     string(PhaseBetting),
		StartTime:  now,
		Multiplier: 1.0,
		Seed:       seedHex,
		Hash:       hash,
	}
	e.phase = PhaseBetting
	e.ledger.Reset(e.round.ID)
	e.process = NewProcess(e.newSource(seedHex), e.cfg)
	e.phaseDeadline = now.Add(e.cfg.BettingDuration)
	e.lastTimeUpdate = now
	e.alertSent = false

	e.roundCreated = true
	if err := e.store.CreateRound(e.round); err != nil {
		// Liveness over persistence: play continues on in-memory state and
		// the insert is retried when the running phase starts.
		e.roundCreated = false
		e.log.Error("round insert failed, continuing in memory",
			zap.String("round", e.round.ID), zap.Error(err))
	}

	e.log.Info("betting phase started",
		zap.String("round", e.round.ID),
		zap.String("hash", hash))
	e.broadcast.Broadcast(EventGameState, e.stateLocked(now))
}

func (e *Engine) beginRunning(now time.Time) {
	e.phase = PhaseRunning
	e.round.Status = string(PhaseRunning)
	e.round.Multiplier = e.process.SeedMultiplier()
	e.round.TargetEndValue = nil
	e.runStart = now
	e.phaseDeadline = now.Add(e.cfg.RoundDuration)

	if !e.roundCreated {
		if err := e.store.CreateRound(e.round); err != nil {
			e.log.Error("round insert retry failed", zap.Error(err))
		} else {
			e.roundCreated = true
		}
	}

	// Snapshot accepted bets into persistence before the multiplier moves.
	for _, bet := range e.ledger.bets {
		if err := e.store.SaveBet(bet); err != nil {
			e.log.Error("bet snapshot failed",
				zap.String("bet", bet.ID), zap.Error(err))
		}
	}
	if err := e.store.UpdateRoundStatus(e.round.ID, string(PhaseRunning), nil); err != nil {
		e.log.Error("round status update failed", zap.Error(err))
	}

	e.log.Info("running phase started",
		zap.String("round", e.round.ID),
		zap.Float64("seed_multiplier", e.round.Multiplier),
		zap.Int("bets", e.ledger.Len()))
	e.broadcast.Broadcast(EventGameState, e.stateLocked(now))
}

func (e *Engine) tick(now time.Time) {
	elapsed := now.Sub(e.runStart).Seconds()
	fraction := clamp(elapsed/e.cfg.RoundDuration.Seconds(), 0, 1)

	m := e.process.Next(e.round.Multiplier, fraction, e.ledger.TotalStaked(), e.house.EffectiveProfitMargin())
	e.round.Multiplier = m
	e.round.TargetEndValue = e.process.Target()

	metrics.CurrentMultiplier.Set(m)
	e.broadcast.Broadcast(EventMultiplierUpdate, map[string]any{"value": m})
}

func (e *Engine) endRound(now time.Time) {
	e.phase = PhaseEnded
	e.round.Status = string(PhaseEnded)
	final := e.round.Multiplier
	e.round.Result = &final
	e.round.EndTime = now
	e.phaseDeadline = now.Add(e.cfg.Cooldown)

	// The ended event goes out before settlement so clients never wait on
	// persistence latency.
	e.broadcast.Broadcast(EventGameEnded, map[string]any{
		"roundId":         e.round.ID,
		"finalMultiplier": final,
		"bets":            e.ledger.Bets(),
		"cashOuts":        e.ledger.CashOuts(),
		"hash":            e.round.Hash,
		"seed":            e.round.Seed,
	})

	paid, total := e.settler.Settle(e.round, e.ledger, final)

	if err := e.store.UpdateRoundStatus(e.round.ID, string(PhaseEnded), &final); err != nil {
		e.log.Error("round result update failed", zap.Error(err))
	}

	metrics.RoundsTotal.Inc()
	metrics.HouseBalance.Set(e.house.Balance())
	if e.alerts != nil && !e.alertSent && e.house.BelowReserve() {
		e.alerts.LowReserve(e.cfg.GameType, e.house.Balance(), e.cfg.ReserveTarget)
		e.alertSent = true
	}

	e.history = append([]models.RoundHistory{{
		RoundID:         e.round.ID,
		FinalMultiplier: final,
		StartTime:       e.round.StartTime,
		EndTime:         now,
		Hash:            e.round.Hash,
		Seed:            e.round.Seed,
		Bets:            e.ledger.Bets(),
		CashOuts:        e.ledger.CashOuts(),
	}}, e.history...)
	if len(e.history) > historyLimit {
		e.history = e.history[:historyLimit]
	}

	e.log.Info("round ended",
		zap.String("round", e.round.ID),
		zap.Float64("final_multiplier", final),
		zap.Int("settled_bets", paid),
		zap.Float64("settled_payout", total),
		zap.Int("pending_writes", e.settler.PendingCount()),
		zap.Float64("house_balance", e.house.Balance()))
}

func (e *Engine) maybeTimeUpdate(now time.Time) {
	if now.Sub(e.lastTimeUpdate) < time.Second {
		return
	}
	e.lastTimeUpdate = now

	remaining := e.phaseDeadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	e.broadcast.Broadcast(EventTimeUpdate, map[string]any{"msRemaining": remaining.Milliseconds()})
}

// PlaceBet admits a stake into the current round. The player's balance is
// debited before the bet is recorded; a failed debit rejects the bet.
func (e *Engine) PlaceBet(playerID string, amount float64) (*models.Bet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	if e.round == nil || e.phase != PhaseBetting {
		return nil, e.reject(ErrPhaseMismatch)
	}
	if amount < e.cfg.MinBet || amount > e.cfg.MaxBet {
		return nil, e.reject(ErrAmountOutOfRange)
	}
	if _, exists := e.ledger.Bet(playerID); exists {
		return nil, e.reject(ErrDuplicateBet)
	}
	if e.limits != nil {
		if err := e.limits.CheckDailyLimit(playerID, amount); err != nil {
			return nil, e.reject(ErrDailyLimit)
		}
	}

	if err := e.store.IncrementUserBalance(playerID, -amount); err != nil {
		e.log.Warn("stake debit failed",
			zap.String("player", playerID), zap.Error(err))
		return nil, fmt.Errorf("debit stake: %w", err)
	}

	bet, err := e.ledger.PlaceBet(playerID, amount, e.cfg.MinBet, e.cfg.MaxBet, now)
	if err != nil {
		_ = e.store.IncrementUserBalance(playerID, amount)
		return nil, e.reject(err)
	}

	e.house.RecordBet(amount)
	if err := e.store.UpdateHouseBalance(e.cfg.GameType, amount); err != nil {
		e.log.Error("house credit failed", zap.Error(err))
	}
	if e.limits != nil {
		e.limits.RecordWager(playerID, amount)
	}

	metrics.BetsTotal.Inc()
	metrics.BetAmountTotal.Add(amount)
	e.broadcast.Broadcast(EventBetPlaced, bet)
	e.log.Info("bet placed",
		zap.String("round", e.round.ID),
		zap.String("player", playerID),
		zap.Float64("amount", amount))
	return bet, nil
}

// CashOut locks in the current multiplier for the player's bet. The payout
// applies now; round-end settlement will skip this bet.
func (e *Engine) CashOut(playerID string) (*models.CashOut, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	if e.round == nil || e.phase != PhaseRunning {
		return nil, e.reject(ErrPhaseMismatch)
	}

	co, err := e.ledger.CashOut(playerID, e.round.Multiplier, now)
	if err != nil {
		return nil, e.reject(err)
	}

	bet, _ := e.ledger.Bet(playerID)
	bet.Settled = true
	bet.Payout = co.Payout

	// Balances are final now; the persistence writes run at round-end
	// settlement so the command path never waits on storage.
	e.house.RecordPayout(co.Payout)
	e.settler.EnqueueCashOut(bet.ID, playerID, co.Payout)

	metrics.CashOutsTotal.Inc()
	e.broadcast.Broadcast(EventCashOutMade, co)
	e.log.Info("cash out",
		zap.String("round", e.round.ID),
		zap.String("player", playerID),
		zap.Float64("multiplier", co.Multiplier),
		zap.Float64("payout", co.Payout))
	return co, nil
}

func (e *Engine) reject(err error) error {
	metrics.BetsRejectedTotal.WithLabelValues(RejectionReason(err)).Inc()
	return err
}

// Snapshot returns the current game state for a newly connected client.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked(e.now())
}

func (e *Engine) stateLocked(now time.Time) State {
	s := State{
		Phase:            e.phase,
		ConnectedPlayers: e.online(),
		Bets:             e.ledger.Bets(),
		CashOuts:         e.ledger.CashOuts(),
	}
	if e.round != nil {
		s.RoundID = e.round.ID
		s.Hash = e.round.Hash
		s.Multiplier = e.round.Multiplier
		if remaining := e.phaseDeadline.Sub(now); remaining > 0 {
			s.TimeLeftMs = remaining.Milliseconds()
		}
	}
	return s
}

// Phase reports the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// CurrentRound returns a copy of the active round.
func (e *Engine) CurrentRound() (models.Round, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return models.Round{}, false
	}
	return *e.round, true
}

// History returns recent finished rounds, newest first.
func (e *Engine) History(limit int) []models.RoundHistory {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.history) {
		limit = len(e.history)
	}
	out := make([]models.RoundHistory, limit)
	copy(out, e.history[:limit])
	return out
}

// HouseSnapshot returns the tracker's current aggregate state.
func (e *Engine) HouseSnapshot() models.HouseBalance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.house.Snapshot()
}
