package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"umbra_payment/internal/domain"
)

const (
	// DefaultPageSize is used when the caller gives no limit
	DefaultPageSize = 20
	// MaxPageSize caps a single page
	MaxPageSize = 100
)

// Page selects a slice of history. Cursor is the NextCursor of the previous
// page, empty for the newest transactions.
type Page struct {
	Cursor string
	Limit  int
}

// TransactionPage is one page of history, newest first
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	NextCursor   string               `json:"next_cursor"`
	Limit        int                  `json:"limit"`
}

// ListTransactions pages through the wallet history by sequence, so pages stay
// stable while new transactions are appended
func (l *Ledger) ListTransactions(ctx context.Context, userID string, page Page) (*TransactionPage, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	var before int64
	if page.Cursor != "" {
		v, err := strconv.ParseInt(page.Cursor, 10, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: malformed cursor %q", domain.ErrInvalidRequest, page.Cursor)
		}
		before = v
	}

	if !l.autoProvision {
		if _, err := l.store.GetWallet(ctx, userID); err != nil {
			return nil, classify(err)
		}
	}

	txs, err := l.store.ListTransactions(ctx, userID, before, limit+1)
	if err != nil {
		return nil, classify(err)
	}
	out := &TransactionPage{Transactions: txs, Limit: limit}
	if len(txs) > limit {
		out.Transactions = txs[:limit]
		out.NextCursor = strconv.FormatInt(out.Transactions[limit-1].Sequence, 10)
	}
	if out.Transactions == nil {
		out.Transactions = []domain.Transaction{}
	}
	return out, nil
}

// Reconciliation is the result of replaying a wallet's history
type Reconciliation struct {
	UserID       string `json:"user_id"`
	Balance      int64  `json:"balance"`      // Stored wallet balance
	Replayed     int64  `json:"replayed"`     // Balance rebuilt from history
	Version      int64  `json:"version"`      // Wallet version the replay stopped at
	Transactions int    `json:"transactions"` // Transactions replayed
	Consistent   bool   `json:"consistent"`   // Every snapshot and the final balance agree
	Mismatch     string `json:"mismatch,omitempty"`
}

// Reconcile rebuilds the balance from the full history and checks every
// balance_after snapshot against the running total
func (l *Ledger) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	w, err := l.store.GetWallet(ctx, userID)
	if errors.Is(err, domain.ErrWalletNotFound) && l.autoProvision {
		return &Reconciliation{UserID: userID, Consistent: true}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	// History is read after the wallet, so it holds at least every sequence up to w.Version
	history, err := l.store.History(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}

	rec := &Reconciliation{UserID: userID, Balance: w.Balance, Version: w.Version, Consistent: true}
	var running, expectSeq int64 = 0, 1
	for _, txn := range history {
		if txn.Sequence > w.Version {
			break
		}
		if txn.Sequence != expectSeq {
			rec.fail(fmt.Sprintf("sequence gap: expected %d, found %d", expectSeq, txn.Sequence))
			break
		}
		running += txn.Signed()
		if running < 0 {
			rec.fail(fmt.Sprintf("balance negative after transaction %s", txn.ID))
			break
		}
		if txn.BalanceAfter != running {
			rec.fail(fmt.Sprintf("transaction %s records balance_after %d, replay gives %d", txn.ID, txn.BalanceAfter, running))
			break
		}
		rec.Transactions++
		expectSeq++
	}
	rec.Replayed = running
	if rec.Consistent && rec.Transactions != int(w.Version) {
		rec.fail(fmt.Sprintf("history holds %d transactions, wallet version is %d", rec.Transactions, w.Version))
	}
	if rec.Consistent && running != w.Balance {
		rec.fail(fmt.Sprintf("replayed balance %d differs from stored %d", running, w.Balance))
	}
	return rec, nil
}

func (r *Reconciliation) fail(reason string) {
	r.Consistent = false
	r.Mismatch = reason
}
