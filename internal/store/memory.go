package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"umbra_payment/internal/domain"
)

type idemKey struct {
	kind domain.Kind
	key  string
}

// memWallet is one wallet row with its history. lock is a one slot semaphore
// so waiters can give up when their context ends.
type memWallet struct {
	lock   chan struct{}
	exists bool
	wallet domain.Wallet
	txns   []domain.Transaction // ascending by Sequence
	keys   map[idemKey]int      // index into txns
}

// MemoryStore is an in-process LedgerStore. Each wallet has its own lock, so
// operations on different wallets never wait on each other.
type MemoryStore struct {
	mu      sync.Mutex
	wallets map[string]*memWallet
	now     func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wallets: make(map[string]*memWallet), now: time.Now}
}

var _ LedgerStore = (*MemoryStore)(nil)

func (s *MemoryStore) entry(userID string) *memWallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.wallets[userID]
	if !ok {
		e = &memWallet{lock: make(chan struct{}, 1), keys: make(map[idemKey]int)}
		s.wallets[userID] = e
	}
	return e
}

func (e *memWallet) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for wallet lock: %w", ctx.Err())
	}
}

func (e *memWallet) release() { <-e.lock }

// Atomic implements LedgerStore
func (s *MemoryStore) Atomic(ctx context.Context, userID string, create bool, fn func(tx Tx) error) error {
	e := s.entry(userID)
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	w := e.wallet
	if !e.exists {
		if !create {
			return domain.ErrWalletNotFound
		}
		now := s.now()
		w = domain.Wallet{UserID: userID, CreatedAt: now, UpdatedAt: now}
	}

	tx := &memTx{entry: e, wallet: w, staged: make(map[idemKey]int)}
	if err := fn(tx); err != nil {
		return err // nothing staged reaches the entry
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// commit
	for _, txn := range tx.pending {
		e.keys[idemKey{txn.Kind, txn.IdempotencyKey}] = len(e.txns)
		e.txns = append(e.txns, cloneTransaction(txn))
	}
	e.wallet = tx.wallet
	e.exists = true
	return nil
}

// GetWallet implements LedgerStore
func (s *MemoryStore) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	e := s.entry(userID)
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()
	if !e.exists {
		return nil, domain.ErrWalletNotFound
	}
	w := e.wallet
	return &w, nil
}

// EnsureWallet implements LedgerStore
func (s *MemoryStore) EnsureWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Atomic(ctx, userID, true, func(tx Tx) error {
		w = tx.Wallet()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListTransactions implements LedgerStore
func (s *MemoryStore) ListTransactions(ctx context.Context, userID string, before int64, limit int) ([]domain.Transaction, error) {
	e := s.entry(userID)
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	out := make([]domain.Transaction, 0, limit)
	for i := len(e.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if before > 0 && e.txns[i].Sequence >= before {
			continue
		}
		out = append(out, cloneTransaction(&e.txns[i]))
	}
	return out, nil
}

// History implements LedgerStore
func (s *MemoryStore) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	e := s.entry(userID)
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	out := make([]domain.Transaction, len(e.txns))
	for i := range e.txns {
		out[i] = cloneTransaction(&e.txns[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

type memTx struct {
	entry   *memWallet
	wallet  domain.Wallet
	pending []*domain.Transaction
	staged  map[idemKey]int
}

func (t *memTx) Wallet() domain.Wallet { return t.wallet }

func (t *memTx) FindByKey(_ context.Context, kind domain.Kind, key string) (*domain.Transaction, error) {
	k := idemKey{kind, key}
	if i, ok := t.staged[k]; ok {
		txn := cloneTransaction(t.pending[i])
		return &txn, nil
	}
	if i, ok := t.entry.keys[k]; ok {
		txn := cloneTransaction(&t.entry.txns[i])
		return &txn, nil
	}
	return nil, nil
}

func (t *memTx) Append(_ context.Context, txn *domain.Transaction) error {
	k := idemKey{txn.Kind, txn.IdempotencyKey}
	if _, ok := t.entry.keys[k]; ok {
		return ErrDuplicate
	}
	if _, ok := t.staged[k]; ok {
		return ErrDuplicate
	}
	if txn.Sequence != t.wallet.Version+1 {
		return fmt.Errorf("%w: sequence %d after version %d", ErrStaleWallet, txn.Sequence, t.wallet.Version)
	}
	if txn.BalanceAfter < 0 {
		return fmt.Errorf("refusing negative balance %d for wallet %s", txn.BalanceAfter, txn.UserID)
	}
	t.wallet.Balance = txn.BalanceAfter
	t.wallet.Version = txn.Sequence
	t.wallet.UpdatedAt = txn.CreatedAt

	staged := cloneTransaction(txn)
	t.staged[k] = len(t.pending)
	t.pending = append(t.pending, &staged)
	return nil
}

// cloneTransaction copies txn including its metadata map so callers never
// share mutable state with the store
func cloneTransaction(txn *domain.Transaction) domain.Transaction {
	c := *txn
	c.Replayed = false
	if txn.Metadata != nil {
		c.Metadata = deepCopy(map[string]interface{}(txn.Metadata)).(map[string]interface{})
	}
	return c
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = deepCopy(val)
		}
		return s
	default:
		return v
	}
}
