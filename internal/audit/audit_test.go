package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"umbra_payment/internal/domain"
	"umbra_payment/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySaver struct {
	logs []AuditLog
	err  error
}

func (m *memorySaver) Save(_ context.Context, log AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

func eventBody(t *testing.T) []byte {
	t.Helper()
	txn := &domain.Transaction{
		ID: "tx-9", UserID: "u1", Kind: domain.KindDrawDebit, Amount: 30, BalanceAfter: 20, Sequence: 2,
		IdempotencyKey: "d1", Metadata: map[string]interface{}{"pool_id": "premium"},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(events.FromTransaction(txn))
	require.NoError(t, err)
	return body
}

func TestHandlerArchivesEvent(t *testing.T) {
	s := &memorySaver{}
	err := Handler(s, time.Second)(context.Background(), eventBody(t))
	require.NoError(t, err)

	require.Len(t, s.logs, 1)
	log := s.logs[0]
	assert.Equal(t, "tx-9", log.ID)
	assert.Equal(t, "DRAW_DEBIT", log.Kind)
	assert.Equal(t, int64(20), log.BalanceAfter)
	assert.Equal(t, "premium", log.Metadata["pool_id"])
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), log.CommittedAt)
}

func TestHandlerRejectsPoison(t *testing.T) {
	s := &memorySaver{}
	h := Handler(s, time.Second)

	assert.ErrorIs(t, h(context.Background(), []byte("{not json")), events.ErrPoison)
	assert.ErrorIs(t, h(context.Background(), []byte(`{"transaction_id":"x","kind":"REFUND"}`)), events.ErrPoison)
	assert.Empty(t, s.logs)
}

func TestHandlerRequeuesOnStoreFailure(t *testing.T) {
	s := &memorySaver{err: errors.New("mongo down")}
	err := Handler(s, time.Second)(context.Background(), eventBody(t))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, events.ErrPoison)
}
