package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Kind classifies a ledger transaction. The sign of the amount is implied by the kind.
type Kind string

const (
	KindTopUp     Kind = "TOPUP"      // Credit
	KindSpend     Kind = "SPEND"      // Manual debit
	KindDrawDebit Kind = "DRAW_DEBIT" // Debit paying for a gacha draw
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindTopUp, KindSpend, KindDrawDebit:
		return true
	}
	return false
}

// IsCredit reports whether the kind adds to the balance
func (k Kind) IsCredit() bool {
	return k == KindTopUp
}

// Transaction Model
type Transaction struct {
	ID             string            `gorm:"primaryKey;size:36" json:"id"`                                                                                     // UUID assigned at creation
	UserID         string            `gorm:"size:64;not null;uniqueIndex:idx_tx_idempotency,priority:1;uniqueIndex:idx_tx_sequence,priority:1" json:"user_id"` // Owning wallet
	Kind           Kind              `gorm:"size:16;not null;uniqueIndex:idx_tx_idempotency,priority:2" json:"kind"`                                           // TOPUP, SPEND or DRAW_DEBIT
	IdempotencyKey string            `gorm:"size:128;not null;uniqueIndex:idx_tx_idempotency,priority:3" json:"idempotency_key"`                               // Caller supplied retry token
	Sequence       int64             `gorm:"not null;uniqueIndex:idx_tx_sequence,priority:2" json:"sequence"`                                                  // Wallet version produced by this transaction
	Amount         int64             `gorm:"not null" json:"amount"`                                                                                           // Always positive
	BalanceAfter   int64             `gorm:"not null" json:"balance_after"`                                                                                    // Snapshot right after applying
	Metadata       datatypes.JSONMap `json:"metadata"`                                                                                                         // Kind specific payload
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`                                                                                       // Insertion time

	Replayed bool `gorm:"-" json:"-"` // Set when returned for an idempotent retry instead of being created
}

// Signed returns the balance delta this transaction applied
func (t *Transaction) Signed() int64 {
	if t.Kind.IsCredit() {
		return t.Amount
	}
	return -t.Amount
}
