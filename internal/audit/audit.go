// Package audit archives committed ledger transactions in MongoDB.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"umbra_payment/internal/events"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Collection holds one document per ledger transaction
const Collection = "audit_logs"

// AuditLog is the archived form of a transaction event
type AuditLog struct {
	ID             string                 `bson:"_id"` // Transaction id, so redeliveries do not duplicate
	UserID         string                 `bson:"user_id"`
	Kind           string                 `bson:"kind"`
	Amount         int64                  `bson:"amount"`
	BalanceAfter   int64                  `bson:"balance_after"`
	Sequence       int64                  `bson:"sequence"`
	IdempotencyKey string                 `bson:"idempotency_key"`
	Metadata       map[string]interface{} `bson:"metadata,omitempty"`
	CommittedAt    time.Time              `bson:"committed_at"`
	ProcessedAt    time.Time              `bson:"processed_at"`
}

// FromEvent maps an event to its audit document
func FromEvent(ev events.TransactionEvent) AuditLog {
	return AuditLog{
		ID:             ev.TransactionID,
		UserID:         ev.UserID,
		Kind:           string(ev.Kind),
		Amount:         ev.Amount,
		BalanceAfter:   ev.BalanceAfter,
		Sequence:       ev.Sequence,
		IdempotencyKey: ev.IdempotencyKey,
		Metadata:       ev.Metadata,
		CommittedAt:    ev.CreatedAt,
	}
}

// Saver stores audit documents
type Saver interface {
	Save(ctx context.Context, log AuditLog) error
}

// Repository is the MongoDB Saver
type Repository struct {
	collection *mongo.Collection
}

// NewRepository uses the audit collection of database dbName
func NewRepository(client *mongo.Client, dbName string) *Repository {
	return &Repository{collection: client.Database(dbName).Collection(Collection)}
}

// Save inserts log. A document that already exists is left untouched, since
// events are delivered at least once.
func (r *Repository) Save(ctx context.Context, log AuditLog) error {
	log.ProcessedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, log)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Handler returns the consumer callback that archives each event with s
func Handler(s Saver, timeout time.Duration) events.Handler {
	return func(ctx context.Context, body []byte) error {
		var ev events.TransactionEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("%w: %v", events.ErrPoison, err)
		}
		if ev.TransactionID == "" || !ev.Kind.Valid() {
			return fmt.Errorf("%w: event without transaction id or with unknown kind %q", events.ErrPoison, ev.Kind)
		}

		saveCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.Save(saveCtx, FromEvent(ev)); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"transaction_id": ev.TransactionID,
			"kind":           ev.Kind,
		}).Info("Transaction archived")
		return nil
	}
}
