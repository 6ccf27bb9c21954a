// Package ledger owns wallet balances. Every credit and debit runs as one
// atomic unit of work against the ledger store and appends an immutable
// transaction; retried requests are recognised by their idempotency key.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"umbra_payment/internal/domain"
	"umbra_payment/internal/events"
	"umbra_payment/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxKeyLength    = 128
	maxUserIDLength = 64
	publishTimeout  = 2 * time.Second
)

// Annotator runs inside the unit of work of a debit after the funds check and
// before the transaction is stored. It may fill txn.Metadata; an error aborts
// the whole unit of work.
type Annotator func(txn *domain.Transaction) error

// Matcher decides whether a transaction already stored under the key answers
// the retried request. A non-nil error rejects the retry.
type Matcher func(existing *domain.Transaction) error

// Options configures a Ledger
type Options struct {
	AutoProvision bool             // GetWallet creates missing wallets instead of failing with NotFound
	OpTimeout     time.Duration    // Bound of one balance-mutating unit of work, 0 disables
	Publisher     events.Publisher // Receives committed transactions, may be nil
	Now           func() time.Time // Clock, defaults to time.Now in UTC
}

// Ledger is the wallet ledger
type Ledger struct {
	store         store.LedgerStore
	autoProvision bool
	opTimeout     time.Duration
	publisher     events.Publisher
	now           func() time.Time
}

// New creates a ledger on top of st
func New(st store.LedgerStore, opts Options) *Ledger {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{
		store:         st,
		autoProvision: opts.AutoProvision,
		opTimeout:     opts.OpTimeout,
		publisher:     opts.Publisher,
		now:           now,
	}
}

// AutoProvision reports the wallet provisioning policy
func (l *Ledger) AutoProvision() bool { return l.autoProvision }

// GetWallet returns the wallet of userID. A missing wallet is provisioned with
// a zero balance when auto-provisioning is on, otherwise ErrWalletNotFound.
func (l *Ledger) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	var (
		w   *domain.Wallet
		err error
	)
	if l.autoProvision {
		w, err = l.store.EnsureWallet(ctx, userID)
	} else {
		w, err = l.store.GetWallet(ctx, userID)
	}
	if err != nil {
		return nil, classify(err)
	}
	return w, nil
}

// TopUp credits amount to the wallet, creating it if needed
func (l *Ledger) TopUp(ctx context.Context, userID string, amount int64, key string, metadata map[string]interface{}) (*domain.Transaction, error) {
	return l.apply(ctx, operation{kind: domain.KindTopUp, userID: userID, amount: amount, key: key, metadata: metadata, create: true})
}

// Spend debits amount from the wallet, failing with ErrInsufficientFunds when
// the balance at the moment of the locked check is lower than amount
func (l *Ledger) Spend(ctx context.Context, userID string, amount int64, key string, metadata map[string]interface{}) (*domain.Transaction, error) {
	return l.apply(ctx, operation{kind: domain.KindSpend, userID: userID, amount: amount, key: key, metadata: metadata, create: l.autoProvision})
}

// DebitForDraw is Spend tagged DRAW_DEBIT. annotate attaches the draw outcome
// inside the same unit of work; it is not called when the key is replayed.
// match replaces the amount comparison for a replayed key when not nil.
func (l *Ledger) DebitForDraw(ctx context.Context, userID string, amount int64, key string, annotate Annotator, match Matcher) (*domain.Transaction, error) {
	return l.apply(ctx, operation{kind: domain.KindDrawDebit, userID: userID, amount: amount, key: key, annotate: annotate, match: match, create: l.autoProvision})
}

// FindTransaction returns the transaction of kind stored under key, marked as
// replayed, or nil when the key is unused or the wallet does not exist
func (l *Ledger) FindTransaction(ctx context.Context, userID string, kind domain.Kind, key string) (*domain.Transaction, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var found *domain.Transaction
	err := l.store.Atomic(ctx, userID, false, func(tx store.Tx) error {
		txn, err := tx.FindByKey(ctx, kind, key)
		found = txn
		return err
	})
	if errors.Is(err, domain.ErrWalletNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	if found != nil {
		found.Replayed = true
	}
	return found, nil
}

type operation struct {
	kind     domain.Kind
	userID   string
	amount   int64
	key      string
	metadata map[string]interface{}
	annotate Annotator
	match    Matcher
	create   bool
}

func (l *Ledger) apply(ctx context.Context, op operation) (*domain.Transaction, error) {
	if err := validateUserID(op.userID); err != nil {
		return nil, err
	}
	if op.amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidAmount, op.amount)
	}
	if err := validateKey(op.key); err != nil {
		return nil, err
	}
	metadata, err := normalizeMetadata(op.metadata)
	if err != nil {
		return nil, err
	}
	op.metadata = metadata

	if l.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opTimeout)
		defer cancel()
	}

	txn, err := l.commit(ctx, op)
	// A concurrent writer can only win the unique index when it slipped in
	// before our lock; the second attempt replays what it stored.
	if errors.Is(err, store.ErrDuplicate) || errors.Is(err, store.ErrStaleWallet) {
		txn, err = l.commit(ctx, op)
	}
	entry := logrus.WithFields(logrus.Fields{
		"user_id": op.userID, // Wallet owner
		"kind":    op.kind,   // Transaction kind
		"amount":  op.amount, // Requested amount
		"key":     op.key,    // Idempotency key
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, domain.ErrUnavailable) {
			entry.WithError(err).Error("Ledger operation failed")
		} else {
			entry.WithError(err).Info("Ledger operation rejected")
		}
		return nil, err
	}

	entry = entry.WithFields(logrus.Fields{
		"transaction_id": txn.ID,           // Stored transaction
		"balance_after":  txn.BalanceAfter, // Resulting balance
	})
	if txn.Replayed {
		entry.Info("Idempotent replay")
		return txn, nil
	}
	entry.Info("Ledger transaction committed")
	l.publish(ctx, txn)
	return txn, nil
}

func (l *Ledger) commit(ctx context.Context, op operation) (*domain.Transaction, error) {
	var result *domain.Transaction
	err := l.store.Atomic(ctx, op.userID, op.create, func(tx store.Tx) error {
		existing, err := tx.FindByKey(ctx, op.kind, op.key)
		if err != nil {
			return err
		}
		if existing != nil {
			if op.match != nil {
				if err := op.match(existing); err != nil {
					return err
				}
			} else if existing.Amount != op.amount {
				return fmt.Errorf("%w: key %q was used for amount %d", domain.ErrIdempotencyConflict, op.key, existing.Amount)
			}
			existing.Replayed = true
			result = existing
			return nil
		}

		w := tx.Wallet()
		var after int64
		if op.kind.IsCredit() {
			if w.Balance > math.MaxInt64-op.amount {
				return fmt.Errorf("%w: credit of %d overflows balance", domain.ErrInvalidAmount, op.amount)
			}
			after = w.Balance + op.amount
		} else {
			if !w.CanDebit(op.amount) {
				return fmt.Errorf("%w: balance %d, requested %d", domain.ErrInsufficientFunds, w.Balance, op.amount)
			}
			after = w.Balance - op.amount
		}

		txn := &domain.Transaction{
			ID:             uuid.NewString(),
			UserID:         op.userID,
			Kind:           op.kind,
			IdempotencyKey: op.key,
			Sequence:       w.Version + 1,
			Amount:         op.amount,
			BalanceAfter:   after,
			Metadata:       op.metadata,
			CreatedAt:      l.now(),
		}
		if op.annotate != nil {
			if err := op.annotate(txn); err != nil {
				return err
			}
		}
		if err := tx.Append(ctx, txn); err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Ledger) publish(ctx context.Context, txn *domain.Transaction) {
	if l.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := l.publisher.Publish(pubCtx, events.RoutingKey(txn.Kind), events.FromTransaction(txn)); err != nil {
		// The transaction stays committed; a lost event only leaves a gap in the audit archive
		logrus.WithFields(logrus.Fields{
			"transaction_id": txn.ID,
			"error":          err.Error(),
		}).Warn("Failed to publish ledger event")
	}
}

// classify keeps domain errors as they are and turns everything else
// (driver failures, lock waits past the deadline) into ErrUnavailable
func classify(err error) error {
	for _, known := range []error{
		domain.ErrInvalidAmount,
		domain.ErrInvalidRequest,
		domain.ErrWalletNotFound,
		domain.ErrInsufficientFunds,
		domain.ErrPoolNotFound,
		domain.ErrInvalidPool,
		domain.ErrIdempotencyConflict,
		domain.ErrUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" || len(userID) > maxUserIDLength {
		return fmt.Errorf("%w: user_id must be 1-%d characters", domain.ErrInvalidRequest, maxUserIDLength)
	}
	return nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > maxKeyLength {
		return fmt.Errorf("%w: idempotency_key must be 1-%d characters", domain.ErrInvalidRequest, maxKeyLength)
	}
	return nil
}

// normalizeMetadata round-trips caller metadata through JSON so the stored
// value has the same shape whichever store reads it back
func normalizeMetadata(m map[string]interface{}) (map[string]interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata is not JSON encodable", domain.ErrInvalidRequest)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: metadata is not a JSON object", domain.ErrInvalidRequest)
	}
	return out, nil
}
