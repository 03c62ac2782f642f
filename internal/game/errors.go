package game

import (
	"context"
	"errors"

	"casinolab/internal/ledger"
	"casinolab/internal/rng"
)

var (
	ErrBettingClosed     = errors.New("betting is closed")
	ErrCashoutClosed     = errors.New("cannot cash out now")
	ErrDuplicateBet      = errors.New("already have a bet this round")
	ErrNoActiveWager     = errors.New("no active bet this round")
	ErrAlreadyCashedOut  = errors.New("already cashed out")
	ErrInvalidStake      = errors.New("invalid stake")
	ErrInvalidParams     = errors.New("invalid bet parameters")
	ErrGameUnavailable   = errors.New("game unavailable")
	ErrIdentityRequired  = errors.New("user id is required")
	ErrNotInRoom         = errors.New("join a room first")
	ErrUnknownRoom       = errors.New("unknown room")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrUnknownMessage    = errors.New("unknown message type")
	ErrMalformedMessage  = errors.New("malformed message")
	ErrMessageNotFound   = errors.New("chat message not found")
	ErrRoundNotFound     = errors.New("round not found")
	ErrSaltNotFound      = errors.New("salt not found")
	ErrQueueFull         = errors.New("server busy, try again")
	ErrTimeout           = errors.New("request timed out")
	ErrGameStopped       = errors.New("game is stopped")
)

// Reason maps an error to the stable code sent to clients.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidParams), errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownMessage):
		return "invalid_parameters"
	case errors.Is(err, ErrInvalidStake), errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_stake"
	case errors.Is(err, ErrGameUnavailable):
		return "game_unavailable"
	case errors.Is(err, ErrBettingClosed):
		return "betting_closed"
	case errors.Is(err, ErrCashoutClosed):
		return "cashout_closed"
	case errors.Is(err, ErrDuplicateBet):
		return "duplicate_bet"
	case errors.Is(err, ErrNoActiveWager):
		return "no_active_bet"
	case errors.Is(err, ErrAlreadyCashedOut):
		return "already_cashed_out"
	case errors.Is(err, ErrIdentityRequired), errors.Is(err, ledger.ErrUnknownUser):
		return "identity_required"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrUnknownRoom):
		return "unknown_room"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrRoundNotFound), errors.Is(err, ErrSaltNotFound):
		return "not_found"
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "busy"
	case errors.Is(err, rng.ErrEntropyUnavailable):
		return "entropy_unavailable"
	default:
		return "internal"
	}
}

// IsClientError reports whether err was caused by the request rather than
// by the server.
func IsClientError(err error) bool {
	switch Reason(err) {
	case "internal", "busy", "entropy_unavailable", "":
		return false
	}
	return true
}
