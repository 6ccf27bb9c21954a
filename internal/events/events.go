// Package events carries committed ledger transactions to other services.
package events

import (
	"context"
	"strings"
	"time"

	"umbra_payment/internal/domain"
)

// Exchange is the topic exchange ledger events are published on
const Exchange = "ledger_events"

// TransactionEvent is the body of a transaction.* message
type TransactionEvent struct {
	TransactionID  string                 `json:"transaction_id"`
	UserID         string                 `json:"user_id"`
	Kind           domain.Kind            `json:"kind"`
	Amount         int64                  `json:"amount"`
	BalanceAfter   int64                  `json:"balance_after"`
	Sequence       int64                  `json:"sequence"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Publisher sends events after the ledger commits. Implementations must not
// block the caller for long; delivery failures are only logged.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// RoutingKey is transaction.<kind>, e.g. transaction.draw_debit
func RoutingKey(kind domain.Kind) string {
	return "transaction." + strings.ToLower(string(kind))
}

// FromTransaction builds the event for a committed transaction
func FromTransaction(txn *domain.Transaction) TransactionEvent {
	return TransactionEvent{
		TransactionID:  txn.ID,
		UserID:         txn.UserID,
		Kind:           txn.Kind,
		Amount:         txn.Amount,
		BalanceAfter:   txn.BalanceAfter,
		Sequence:       txn.Sequence,
		IdempotencyKey: txn.IdempotencyKey,
		Metadata:       txn.Metadata,
		CreatedAt:      txn.CreatedAt,
	}
}
