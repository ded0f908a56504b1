package game

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"trader-game/internal/models"
	"trader-game/internal/rng"
)

// callLog records store writes and broadcasts in one sequence so tests can
// assert ordering between the two surfaces.
type callLog struct {
	entries []string
}

func (c *callLog) add(entry string) {
	c.entries = append(c.entries, entry)
}

func (c *callLog) index(entry string) int {
	for i, e := range c.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeStore struct {
	log *callLog

	balances     map[string]float64
	houseBalance float64
	rounds       map[string]*models.Round
	savedBets    map[string]models.Bet
	pendingRows  []models.Bet
	abandoned    []models.AbandonedBet

	createErr error
	statusErr error
	saveErr   error
	findErr   error
	updateErr error
	creditErr error
	houseErr  error
}

func newFakeStore(log *callLog) *fakeStore {
	return &fakeStore{
		log:       log,
		balances:  make(map[string]float64),
		rounds:    make(map[string]*models.Round),
		savedBets: make(map[string]models.Bet),
	}
}

func (f *fakeStore) CreateRound(round *models.Round) error {
	f.log.add("createRound")
	if f.createErr != nil {
		return f.createErr
	}
	copied := *round
	f.rounds[round.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateRoundStatus(roundID, status string, result *float64) error {
	f.log.add("updateRoundStatus:" + status)
	if f.statusErr != nil {
		return f.statusErr
	}
	if r, ok := f.rounds[roundID]; ok {
		r.Status = status
		r.Result = result
	}
	return nil
}

func (f *fakeStore) SaveBet(bet *models.Bet) error {
	f.log.add("saveBet")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedBets[bet.ID] = *bet
	return nil
}

func (f *fakeStore) FindPendingBets(roundID string) ([]models.Bet, error) {
	f.log.add("findPendingBets")
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]models.Bet, len(f.pendingRows))
	copy(out, f.pendingRows)
	return out, nil
}

func (f *fakeStore) FindAbandonedBets() ([]models.AbandonedBet, error) {
	f.log.add("findAbandonedBets")
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]models.AbandonedBet, len(f.abandoned))
	copy(out, f.abandoned)
	return out, nil
}

func (f *fakeStore) UpdateBet(betID string, settled bool, payout float64) error {
	f.log.add("updateBet")
	if f.updateErr != nil {
		return f.updateErr
	}
	if b, ok := f.savedBets[betID]; ok {
		b.Settled = settled
		b.Payout = payout
		f.savedBets[betID] = b
	}
	return nil
}

func (f *fakeStore) IncrementUserBalance(userID string, amount float64) error {
	f.log.add(fmt.Sprintf("incrementBalance:%s", userID))
	if f.creditErr != nil {
		return f.creditErr
	}
	f.balances[userID] += amount
	return nil
}

func (f *fakeStore) UpdateHouseBalance(gameType string, delta float64) error {
	f.log.add("updateHouseBalance")
	if f.houseErr != nil {
		return f.houseErr
	}
	f.houseBalance += delta
	return nil
}

type fakeBroadcaster struct {
	log    *callLog
	events []string
}

func (f *fakeBroadcaster) Broadcast(event string, payload any) {
	f.log.add("broadcast:" + event)
	f.events = append(f.events, event)
}

func (f *fakeBroadcaster) count(event string) int {
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakeLimits struct {
	err     error
	wagered map[string]float64
}

func (f *fakeLimits) CheckDailyLimit(playerID string, amount float64) error {
	return f.err
}

func (f *fakeLimits) RecordWager(playerID string, amount float64) {
	if f.wagered == nil {
		f.wagered = make(map[string]float64)
	}
	f.wagered[playerID] += amount
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func fixedSeed() (string, string) {
	seed := []byte("0123456789abcdef0123456789abcdef")
	return hex.EncodeToString(seed), rng.HashHex(seed)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeStore, *fakeBroadcaster, *fakeClock) {
	t.Helper()

	log := &callLog{}
	store := newFakeStore(log)
	bc := &fakeBroadcaster{log: log}
	clock := &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}

	house := models.HouseBalance{GameType: "trader", Balance: 200000, ProfitMargin: 0.05}
	all := append([]Option{WithClock(clock.now)}, opts...)
	e := New(testGameConfig(), store, bc, house, zap.NewNop(), all...)
	return e, store, bc, clock
}

// stepUntil advances the clock in tick-sized steps until the engine reaches
// the wanted phase.
func stepUntil(t *testing.T, e *Engine, clock *fakeClock, phase Phase) {
	t.Helper()
	for i := 0; i < 300; i++ {
		if e.Phase() == phase {
			return
		}
		clock.advance(300 * time.Millisecond)
		e.Advance(clock.now())
	}
	t.Fatalf("engine never reached phase %s", phase)
}

func TestPhaseCycle(t *testing.T) {
	e, _, bc, clock := newTestEngine(t)

	e.Advance(clock.now())
	if e.Phase() != PhaseBetting {
		t.Fatalf("first advance should open betting, got %s", e.Phase())
	}
	first, _ := e.CurrentRound()

	stepUntil(t, e, clock, PhaseRunning)
	stepUntil(t, e, clock, PhaseEnded)
	stepUntil(t, e, clock, PhaseBetting)

	second, _ := e.CurrentRound()
	if second.ID == first.ID {
		t.Fatal("cooldown expiry must start a fresh round")
	}
	if bc.count(EventGameState) < 3 {
		t.Fatalf("each phase change should broadcast gameState, got %d", bc.count(EventGameState))
	}
	if bc.count(EventGameEnded) != 1 {
		t.Fatalf("gameEnded broadcast count = %d, want 1", bc.count(EventGameEnded))
	}
}

func TestBetAcceptedOnlyDuringBetting(t *testing.T) {
	e, _, _, clock := newTestEngine(t)
	e.Advance(clock.now())

	// A bet close to the phase deadline is still in time.
	clock.advance(3500 * time.Millisecond)
	e.Advance(clock.now())
	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("bet during betting phase: %v", err)
	}

	if _, err := e.CashOut("p1"); !errors.Is(err, ErrPhaseMismatch) {
		t.Fatalf("cash out during betting should be rejected, got %v", err)
	}

	stepUntil(t, e, clock, PhaseRunning)
	if _, err := e.PlaceBet("p2", 50); !errors.Is(err, ErrPhaseMismatch) {
		t.Fatalf("bet during running phase should be rejected, got %v", err)
	}

	stepUntil(t, e, clock, PhaseEnded)
	if _, err := e.PlaceBet("p2", 50); !errors.Is(err, ErrPhaseMismatch) {
		t.Fatalf("bet during cooldown should be rejected, got %v", err)
	}
}

func TestPlaceBetMovesMoney(t *testing.T) {
	e, store, bc, clock := newTestEngine(t)
	e.Advance(clock.now())

	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("place bet: %v", err)
	}

	if store.balances["p1"] != -50 {
		t.Fatalf("player balance = %f, want -50", store.balances["p1"])
	}
	if store.houseBalance != 50 {
		t.Fatalf("house balance delta = %f, want 50", store.houseBalance)
	}
	if bc.count(EventBetPlaced) != 1 {
		t.Fatal("accepted bet must broadcast betPlaced")
	}
}

func TestPlaceBetRejections(t *testing.T) {
	e, _, _, clock := newTestEngine(t)
	e.Advance(clock.now())

	if _, err := e.PlaceBet("p1", 0.5); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("below min: got %v", err)
	}
	if _, err := e.PlaceBet("p1", 5000); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("above max: got %v", err)
	}

	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("valid bet: %v", err)
	}
	if _, err := e.PlaceBet("p1", 60); !errors.Is(err, ErrDuplicateBet) {
		t.Fatalf("second bet same round: got %v", err)
	}
}

func TestPlaceBetDailyLimit(t *testing.T) {
	limiter := &fakeLimits{err: errors.New("over the line")}
	e, store, _, clock := newTestEngine(t, WithLimits(limiter))
	e.Advance(clock.now())

	if _, err := e.PlaceBet("p1", 50); !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("expected ErrDailyLimit, got %v", err)
	}
	if store.balances["p1"] != 0 {
		t.Fatal("rejected bet must not debit the player")
	}

	limiter.err = nil
	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("bet under the limit: %v", err)
	}
	if limiter.wagered["p1"] != 50 {
		t.Fatalf("accepted stake must be recorded, got %f", limiter.wagered["p1"])
	}
}

func TestPlaceBetDebitFailureRejects(t *testing.T) {
	e, store, _, clock := newTestEngine(t)
	e.Advance(clock.now())

	store.creditErr = errors.New("account service down")
	if _, err := e.PlaceBet("p1", 50); err == nil {
		t.Fatal("bet must be rejected when the stake cannot be debited")
	}

	store.creditErr = nil
	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("player should be free to retry: %v", err)
	}
}

func TestSettlementPaysFinalMultiplier(t *testing.T) {
	e, store, _, clock := newTestEngine(t)
	e.Advance(clock.now())

	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("place bet: %v", err)
	}

	stepUntil(t, e, clock, PhaseRunning)
	stepUntil(t, e, clock, PhaseEnded)

	history := e.History(1)
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	final := history[0].FinalMultiplier

	// Payout is stake times final value even below 1.0; partial loss, never
	// total unless the value hit zero.
	want := -50 + 50*final
	if math.Abs(store.balances["p1"]-want) > 1e-9 {
		t.Fatalf("player balance = %f, want %f (final %f)", store.balances["p1"], want, final)
	}
	if math.Abs(store.houseBalance-(50-50*final)) > 1e-9 {
		t.Fatalf("house balance = %f, want %f", store.houseBalance, 50-50*final)
	}
}

func TestCashOutLocksPayout(t *testing.T) {
	e, store, bc, clock := newTestEngine(t)
	e.Advance(clock.now())

	if _, err := e.PlaceBet("p1", 100); err != nil {
		t.Fatalf("place bet: %v", err)
	}
	stepUntil(t, e, clock, PhaseRunning)

	// A few ticks into the round.
	for i := 0; i < 5; i++ {
		clock.advance(300 * time.Millisecond)
		e.Advance(clock.now())
	}

	co, err := e.CashOut("p1")
	if err != nil {
		t.Fatalf("cash out: %v", err)
	}
	if bc.count(EventCashOutMade) != 1 {
		t.Fatal("cash out must broadcast cashOutMade")
	}

	if _, err := e.CashOut("p1"); !errors.Is(err, ErrAlreadyCashedOut) {
		t.Fatalf("second cash out: got %v", err)
	}

	stepUntil(t, e, clock, PhaseEnded)

	// Settlement must not pay the cashed-out bet again.
	want := -100 + co.Payout
	if math.Abs(store.balances["p1"]-want) > 1e-9 {
		t.Fatalf("player balance = %f, want %f", store.balances["p1"], want)
	}
}

func TestGameEndedBroadcastPrecedesSettlementWrites(t *testing.T) {
	e, store, _, clock := newTestEngine(t)
	e.Advance(clock.now())

	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("place bet: %v", err)
	}
	stepUntil(t, e, clock, PhaseRunning)
	stepUntil(t, e, clock, PhaseEnded)

	ended := store.log.index("broadcast:" + EventGameEnded)
	settled := store.log.index("updateBet")
	if ended == -1 || settled == -1 {
		t.Fatalf("missing journal entries: ended=%d settled=%d", ended, settled)
	}
	if ended > settled {
		t.Fatal("gameEnded must be broadcast before settlement persistence")
	}
}

func TestPhaseCycleSurvivesStoreOutage(t *testing.T) {
	e, store, bc, clock := newTestEngine(t)

	outage := errors.New("storage down")
	store.createErr = outage
	store.statusErr = outage
	store.saveErr = outage
	store.findErr = outage
	store.updateErr = outage
	store.houseErr = outage

	e.Advance(clock.now())
	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("bet should be accepted on in-memory state: %v", err)
	}

	stepUntil(t, e, clock, PhaseRunning)
	stepUntil(t, e, clock, PhaseEnded)
	stepUntil(t, e, clock, PhaseBetting)
	stepUntil(t, e, clock, PhaseRunning)

	if bc.count(EventGameEnded) != 1 {
		t.Fatal("round must end exactly once despite the outage")
	}
}

func TestSettlementRetriesAfterOutage(t *testing.T) {
	e, store, _, clock := newTestEngine(t)
	e.Advance(clock.now())

	if _, err := e.PlaceBet("p1", 50); err != nil {
		t.Fatalf("place bet: %v", err)
	}
	stepUntil(t, e, clock, PhaseRunning)

	// Player credit fails at settlement; the write queues.
	store.creditErr = errors.New("storage down")
	stepUntil(t, e, clock, PhaseEnded)
	final := e.History(1)[0].FinalMultiplier

	// The queue drains when the next betting phase opens.
	store.creditErr = nil
	stepUntil(t, e, clock, PhaseBetting)

	want := -50 + 50*final
	if math.Abs(store.balances["p1"]-want) > 1e-9 {
		t.Fatalf("player balance = %f, want %f after retry", store.balances["p1"], want)
	}
}

func TestSeedCommitment(t *testing.T) {
	e, _, _, clock := newTestEngine(t, WithSeedFunc(fixedSeed))
	e.Advance(clock.now())

	wantSeed, wantHash := fixedSeed()
	round, ok := e.CurrentRound()
	if !ok {
		t.Fatal("no active round")
	}
	if round.Hash != wantHash {
		t.Fatalf("published hash = %s, want %s", round.Hash, wantHash)
	}
	if !VerifySeed(wantSeed, round.Hash) {
		t.Fatal("seed must verify against the published hash")
	}

	stepUntil(t, e, clock, PhaseRunning)
	stepUntil(t, e, clock, PhaseEnded)

	history := e.History(1)
	if history[0].Seed != wantSeed || history[0].Hash != wantHash {
		t.Fatal("finished round must reveal the committed seed")
	}
}

func TestCooldownEmitsTimeUpdates(t *testing.T) {
	e, _, bc, clock := newTestEngine(t)
	e.Advance(clock.now())

	stepUntil(t, e, clock, PhaseRunning)
	stepUntil(t, e, clock, PhaseEnded)

	before := bc.count(EventTimeUpdate)
	clock.advance(1100 * time.Millisecond)
	e.Advance(clock.now())

	if bc.count(EventTimeUpdate) <= before {
		t.Fatal("cooldown should keep broadcasting the countdown")
	}
	if e.Phase() != PhaseEnded {
		t.Fatalf("phase = %s, want ended", e.Phase())
	}
}

func TestCashOutDefersPersistenceToRoundEnd(t *testing.T) {
	e, store, _, clock := newTestEngine(t)
	e.Advance(clock.now())

	if _, err := e.PlaceBet("p1", 100); err != nil {
		t.Fatalf("place bet: %v", err)
	}
	stepUntil(t, e, clock, PhaseRunning)
	for i := 0; i < 5; i++ {
		clock.advance(300 * time.Millisecond)
		e.Advance(clock.now())
	}

	co, err := e.CashOut("p1")
	if err != nil {
		t.Fatalf("cash out: %v", err)
	}

	// The cash-out command itself only records state; the credit lands with
	// round-end settlement.
	if math.Abs(store.balances["p1"]-(-100)) > 1e-9 {
		t.Fatalf("balance %f before round end, want -100", store.balances["p1"])
	}

	stepUntil(t, e, clock, PhaseEnded)
	want := -100 + co.Payout
	if math.Abs(store.balances["p1"]-want) > 1e-9 {
		t.Fatalf("balance %f after round end, want %f", store.balances["p1"], want)
	}
}

func TestRunRecoversAbandonedBets(t *testing.T) {
	e, store, _, _ := newTestEngine(t)

	result := 0.8
	store.abandoned = []models.AbandonedBet{
		{Bet: models.Bet{ID: "bet-old", PlayerID: "p7", RoundID: "old-1", Amount: 50}, Result: &result},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Run(ctx)

	if math.Abs(store.balances["p7"]-40) > 1e-9 {
		t.Fatalf("p7 credited %f, want 40", store.balances["p7"])
	}
}

func TestSnapshotReportsTimeLeft(t *testing.T) {
	e, _, _, clock := newTestEngine(t, WithOnlineCount(func() int { return 7 }))
	e.Advance(clock.now())

	clock.advance(2 * time.Second)
	s := e.Snapshot()
	if s.Phase != PhaseBetting {
		t.Fatalf("phase = %s, want betting", s.Phase)
	}
	if s.TimeLeftMs <= 0 || s.TimeLeftMs > 3000 {
		t.Fatalf("timeLeft = %d, want (0, 3000]", s.TimeLeftMs)
	}
	if s.ConnectedPlayers != 7 {
		t.Fatalf("connectedPlayers = %d, want 7", s.ConnectedPlayers)
	}
}
