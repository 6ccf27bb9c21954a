// Package store defines the ledger store contract used by the wallet ledger:
// an atomic, per-wallet unit of work plus read paths for wallets and history.
package store

import (
	"context"
	"errors"

	"umbra_payment/internal/domain"
)

// ErrDuplicate is returned by Tx.Append when the (user, kind, idempotency key)
// or (user, sequence) uniqueness constraint rejects the insert.
var ErrDuplicate = errors.New("duplicate transaction")

// ErrStaleWallet is returned when the wallet row changed under a unit of work.
var ErrStaleWallet = errors.New("wallet version changed concurrently")

// Tx is the view of one wallet inside a unit of work. The wallet is held
// exclusively until the unit of work returns.
type Tx interface {
	// Wallet returns the wallet as of the last Append in this unit of work
	Wallet() domain.Wallet
	// FindByKey returns the transaction stored for (wallet, kind, key), or nil
	FindByKey(ctx context.Context, kind domain.Kind, key string) (*domain.Transaction, error)
	// Append stores txn and moves the wallet to txn.BalanceAfter / txn.Sequence
	Append(ctx context.Context, txn *domain.Transaction) error
}

// LedgerStore is the durable record of wallets and transactions
type LedgerStore interface {
	// Atomic runs fn in one isolated unit of work holding the wallet of userID.
	// A missing wallet is created when create is true, otherwise the call fails
	// with domain.ErrWalletNotFound. Returning an error from fn discards every
	// change made through the Tx.
	Atomic(ctx context.Context, userID string, create bool, fn func(tx Tx) error) error
	// GetWallet returns domain.ErrWalletNotFound when the wallet does not exist
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	// EnsureWallet returns the wallet, provisioning it with a zero balance if absent
	EnsureWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	// ListTransactions returns up to limit transactions with sequence < before
	// (no bound when before <= 0), newest first
	ListTransactions(ctx context.Context, userID string, before int64, limit int) ([]domain.Transaction, error)
	// History returns every transaction of the wallet, oldest first
	History(ctx context.Context, userID string) ([]domain.Transaction, error)
}
