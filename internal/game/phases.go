package game

// Phase is the round engine state. The cycle is strict:
// Betting -> Running -> Ended -> Betting, forever.
type Phase string

const (
	PhaseBetting Phase = "betting"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)
