// Package gormstore implements store.LedgerStore on gorm (MySQL or PostgreSQL).
// Every unit of work is a DB transaction holding the wallet row with SELECT ... FOR UPDATE.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"umbra_payment/internal/domain" // Domain models
	"umbra_payment/internal/store"  // Store contract

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Locking and upsert clauses
)

// Store is a gorm backed ledger store
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm connection. The connection should be opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ store.LedgerStore = (*Store)(nil)

// lockWallet reads the wallet row with an exclusive row lock
func lockWallet(tx *gorm.DB, userID string) (domain.Wallet, error) {
	var w domain.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&w).Error
	return w, err
}

// errMissingWallet ends a unit of work whose wallet row does not exist yet
var errMissingWallet = errors.New("wallet row missing")

// Atomic implements store.LedgerStore. A missing wallet is inserted by its own
// statement and the unit of work restarted, so no transaction inserts after a
// locking read that found nothing (MySQL gap locks deadlock two first writers).
func (s *Store) Atomic(ctx context.Context, userID string, create bool, fn func(tx store.Tx) error) error {
	err := s.atomic(ctx, userID, fn)
	if !errors.Is(err, errMissingWallet) {
		return err
	}
	if !create {
		return domain.ErrWalletNotFound
	}
	if err := s.provision(ctx, userID); err != nil {
		return err
	}
	err = s.atomic(ctx, userID, fn)
	if errors.Is(err, errMissingWallet) {
		return fmt.Errorf("lock wallet: %w", err)
	}
	return err
}

func (s *Store) atomic(ctx context.Context, userID string, fn func(tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := lockWallet(tx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errMissingWallet
		}
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		return fn(&gormTx{tx: tx, wallet: w})
	})
}

// provision inserts a zero wallet; concurrent callers race on the insert and
// the losers do nothing
func (s *Store) provision(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	fresh := domain.Wallet{UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return fmt.Errorf("provision wallet: %w", err)
	}
	return nil
}

// GetWallet implements store.LedgerStore
func (s *Store) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// EnsureWallet implements store.LedgerStore
func (s *Store) EnsureWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if err := s.provision(ctx, userID); err != nil {
		return nil, err
	}
	return s.GetWallet(ctx, userID)
}

// ListTransactions implements store.LedgerStore
func (s *Store) ListTransactions(ctx context.Context, userID string, before int64, limit int) ([]domain.Transaction, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if before > 0 {
		query = query.Where("sequence < ?", before) // Cursor is the last sequence already returned
	}
	var txs []domain.Transaction
	if err := query.Order("sequence desc").Limit(limit).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// History implements store.LedgerStore
func (s *Store) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("sequence asc").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return txs, nil
}

// gormTx is the store.Tx bound to one open DB transaction
type gormTx struct {
	tx     *gorm.DB
	wallet domain.Wallet
}

func (t *gormTx) Wallet() domain.Wallet { return t.wallet }

func (t *gormTx) FindByKey(ctx context.Context, kind domain.Kind, key string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := t.tx.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND idempotency_key = ?", t.wallet.UserID, kind, key).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by idempotency key: %w", err)
	}
	return &txn, nil
}

func (t *gormTx) Append(ctx context.Context, txn *domain.Transaction) error {
	if txn.Sequence != t.wallet.Version+1 {
		return fmt.Errorf("%w: sequence %d after version %d", store.ErrStaleWallet, txn.Sequence, t.wallet.Version)
	}
	if txn.BalanceAfter < 0 {
		return fmt.Errorf("refusing negative balance %d for wallet %s", txn.BalanceAfter, txn.UserID)
	}
	// Version guard on top of the row lock
	res := t.tx.WithContext(ctx).Model(&domain.Wallet{}).
		Where("user_id = ? AND version = ?", t.wallet.UserID, t.wallet.Version).
		Updates(map[string]interface{}{
			"balance":    txn.BalanceAfter,
			"version":    txn.Sequence,
			"updated_at": txn.CreatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update wallet: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return store.ErrStaleWallet
	}
	if err := t.tx.WithContext(ctx).Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.wallet.Balance = txn.BalanceAfter
	t.wallet.Version = txn.Sequence
	t.wallet.UpdatedAt = txn.CreatedAt
	return nil
}
