package engine

import "errors"

// Every rejected precondition maps to exactly one of these kinds so callers
// can classify failures with errors.Is. Nothing is retried internally.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrOrderNotActive       = errors.New("order not active")
	ErrOrderExpired         = errors.New("order expired")
	ErrFillExceedsRemaining = errors.New("fill exceeds remaining amount")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrAlreadyFilled        = errors.New("order already fully filled")
	ErrTransferFailed       = errors.New("asset transfer failed")
	ErrPaused               = errors.New("trading is paused")
)
