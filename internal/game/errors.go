package game

import "errors"

// Rejection reasons returned synchronously to command callers. None of these
// mutate state; the reason string is safe to surface to the player.
var (
	ErrPhaseMismatch    = errors.New("action not allowed in current phase")
	ErrDuplicateBet     = errors.New("bet already placed this round")
	ErrNoActiveBet      = errors.New("no active bet for this round")
	ErrAlreadyCashedOut = errors.New("already cashed out this round")
	ErrAmountOutOfRange = errors.New("bet amount out of range")
	ErrDailyLimit       = errors.New("daily bet limit exceeded")
)

// RejectionReason maps a command error to its wire reason code.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrPhaseMismatch):
		return "PhaseMismatch"
	case errors.Is(err, ErrDuplicateBet):
		return "DuplicateBet"
	case errors.Is(err, ErrNoActiveBet):
		return "NoActiveBet"
	case errors.Is(err, ErrAlreadyCashedOut):
		return "AlreadyCashedOut"
	case errors.Is(err, ErrAmountOutOfRange):
		return "AmountOutOfRange"
	case errors.Is(err, ErrDailyLimit):
		return "DailyLimitExceeded"
	default:
		return "Internal"
	}
}
