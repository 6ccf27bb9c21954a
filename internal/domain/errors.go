package domain

import "errors"

// Domain error kinds. Callers match them with errors.Is; the api package is the
// only layer that turns them into transport codes.
var (
	ErrInvalidAmount       = errors.New("amount must be a positive whole number")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrPoolNotFound        = errors.New("pool not found")
	ErrInvalidPool         = errors.New("pool is not drawable")
	ErrIdempotencyConflict = errors.New("idempotency key already used with different parameters")
	ErrUnavailable         = errors.New("ledger store unavailable")
)
