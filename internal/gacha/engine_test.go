package gacha

import (
	"context"
	"math"
	"sync"
	"testing"

	"umbra_payment/internal/domain"
	"umbra_payment/internal/ledger"
	"umbra_payment/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolMap map[string]*domain.Pool

func (m poolMap) GetPool(_ context.Context, poolID string) (*domain.Pool, error) {
	p, ok := m[poolID]
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	return p, nil
}

// scriptedSource replays fixed rolls and counts how often it was asked
type scriptedSource struct {
	mu    sync.Mutex
	rolls []int64
	calls int
}

func (s *scriptedSource) Int64N(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	roll := s.rolls[s.calls%len(s.rolls)] % n
	s.calls++
	return roll
}

func newEngine(t *testing.T, rolls ...int64) (*Engine, *ledger.Ledger, *scriptedSource) {
	t.Helper()
	l := ledger.New(store.NewMemoryStore(), ledger.Options{AutoProvision: true})
	pools := poolMap{
		"standard": standardPool(),
		"premium": {PoolID: "premium", Name: "Premium", Cost: 30, Rewards: []domain.Reward{
			{RewardID: "azure-crystal", Name: "Azure Crystal", Rarity: "rare", Weight: 60},
			{RewardID: "ancient-relic", Name: "Ancient Relic", Rarity: "epic", Weight: 30},
			{RewardID: "void-crown", Name: "Void Crown", Rarity: "mythic", Weight: 10},
		}},
		"premium-alt": {PoolID: "premium-alt", Cost: 30, Rewards: []domain.Reward{{RewardID: "x", Weight: 1}}},
		"broken":      {PoolID: "broken", Cost: 10, Rewards: []domain.Reward{{RewardID: "x", Weight: 0}}},
		"empty":       {PoolID: "empty", Cost: 10},
	}
	if len(rolls) == 0 {
		rolls = []int64{0}
	}
	src := &scriptedSource{rolls: rolls}
	return NewEngine(pools, l, src), l, src
}

func TestDrawScenario(t *testing.T) {
	e, l, _ := newEngine(t, 95)
	ctx := context.Background()

	w, err := l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)

	_, err = l.TopUp(ctx, "u1", 50, "t1", nil)
	require.NoError(t, err)

	res, err := e.Draw(ctx, "u1", "premium", "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.BalanceAfter)
	assert.Equal(t, int64(30), res.Cost)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "void-crown", res.Outcomes[0].RewardID)
	assert.Equal(t, int64(95), res.Outcomes[0].Roll)
	assert.Equal(t, res.TransactionID, res.Outcomes[0].TransactionID)
	assert.Equal(t, "premium", res.Outcomes[0].PoolID)
	assert.False(t, res.Outcomes[0].DrawnAt.IsZero())

	_, err = e.Draw(ctx, "u1", "premium", "d2")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	w, err = l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), w.Balance)

	page, err := l.ListTransactions(ctx, "u1", ledger.Page{})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)
	draw := page.Transactions[0]
	assert.Equal(t, domain.KindDrawDebit, draw.Kind)
	assert.Equal(t, "premium", draw.Metadata["pool_id"])
}

func TestDrawReplayDoesNotRedraw(t *testing.T) {
	e, l, src := newEngine(t, 3, 80)
	ctx := context.Background()

	_, err := l.TopUp(ctx, "u1", 100, "t1", nil)
	require.NoError(t, err)

	first, err := e.Draw(ctx, "u1", "standard", "d1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := e.Draw(ctx, "u1", "standard", "d1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.TransactionID, again.TransactionID)
	assert.Equal(t, first.Outcomes, again.Outcomes)
	assert.Equal(t, 1, src.calls)

	w, err := l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(90), w.Balance)
}

func TestDrawMulti(t *testing.T) {
	e, l, _ := newEngine(t, 0, 70, 95)
	ctx := context.Background()

	_, err := l.TopUp(ctx, "u1", 100, "t1", nil)
	require.NoError(t, err)

	res, err := e.DrawMulti(ctx, "u1", "standard", "m1", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Cost)
	assert.Equal(t, int64(70), res.BalanceAfter)
	assert.Equal(t, int64(100), res.TotalWeight)
	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, "copper-ring", res.Outcomes[0].RewardID)
	assert.Equal(t, "silver-amulet", res.Outcomes[1].RewardID)
	assert.Equal(t, "shadow-blade", res.Outcomes[2].RewardID)

	_, err = e.DrawMulti(ctx, "u1", "standard", "m2", 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = e.DrawMulti(ctx, "u1", "standard", "m2", MaxDrawCount+1, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestDrawKeyReuseConflicts(t *testing.T) {
	e, l, _ := newEngine(t)
	ctx := context.Background()

	_, err := l.TopUp(ctx, "u1", 200, "t1", nil)
	require.NoError(t, err)

	_, err = e.Draw(ctx, "u1", "premium", "d1")
	require.NoError(t, err)

	// Same cost, different pool
	_, err = e.Draw(ctx, "u1", "premium-alt", "d1")
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	_, err = e.DrawMulti(ctx, "u1", "premium", "d1", 2, nil)
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	w, err := l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(170), w.Balance)
}

func TestDrawPoolErrors(t *testing.T) {
	e, l, src := newEngine(t)
	ctx := context.Background()

	_, err := l.TopUp(ctx, "u1", 100, "t1", nil)
	require.NoError(t, err)

	_, err = e.Draw(ctx, "u1", "missing", "d1")
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
	_, err = e.Draw(ctx, "u1", "broken", "d2")
	assert.ErrorIs(t, err, domain.ErrInvalidPool)
	_, err = e.Draw(ctx, "u1", "empty", "d3")
	assert.ErrorIs(t, err, domain.ErrInvalidPool)

	assert.Equal(t, 0, src.calls)
	w, err := l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Balance)
}

func TestReplayRecomputesMissingRewards(t *testing.T) {
	e, l, src := newEngine(t)
	ctx := context.Background()

	_, err := l.TopUp(ctx, "u1", 100, "t1", nil)
	require.NoError(t, err)

	// A debit whose outcome only kept the rolls
	_, err = l.DebitForDraw(ctx, "u1", 20, "d1", func(txn *domain.Transaction) error {
		meta := drawMetadata{PoolID: "standard", Count: 2, TotalWeight: 100, DrawnAt: txn.CreatedAt, Rolls: []int64{72, 96}}
		encoded, err := meta.encode()
		txn.Metadata = encoded
		return err
	}, nil)
	require.NoError(t, err)

	res, err := e.DrawMulti(ctx, "u1", "standard", "d1", 2, nil)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "silver-amulet", res.Outcomes[0].RewardID)
	assert.Equal(t, "shadow-blade", res.Outcomes[1].RewardID)
	assert.Equal(t, 0, src.calls)

	// Without the pool the rolls cannot be resolved
	delete(e.pools.(poolMap), "standard")
	_, err = e.DrawMulti(ctx, "u1", "standard", "d1", 2, nil)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestReplaySurvivesCatalogChanges(t *testing.T) {
	e, l, src := newEngine(t, 95)
	pools := e.pools.(poolMap)
	ctx := context.Background()

	_, err := l.TopUp(ctx, "u1", 100, "t1", nil)
	require.NoError(t, err)

	first, err := e.Draw(ctx, "u1", "premium", "d1")
	require.NoError(t, err)

	pools["premium"].Cost = 40
	again, err := e.Draw(ctx, "u1", "premium", "d1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, int64(30), again.Cost)
	assert.Equal(t, first.Outcomes, again.Outcomes)

	delete(pools, "premium")
	again, err = e.Draw(ctx, "u1", "premium", "d1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Outcomes, again.Outcomes)

	_, err = e.Draw(ctx, "u1", "premium-alt", "d1")
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	assert.Equal(t, 1, src.calls)
	w, err := l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), w.Balance)
}

func TestSeededDraw(t *testing.T) {
	e, l, src := newEngine(t)
	ctx := context.Background()
	seed := uint64(1<<63 + 7)

	_, err := l.TopUp(ctx, "u1", 200, "t1", nil)
	require.NoError(t, err)

	a, err := e.DrawMulti(ctx, "u1", "standard", "a", 5, &seed)
	require.NoError(t, err)
	b, err := e.DrawMulti(ctx, "u1", "standard", "b", 5, &seed)
	require.NoError(t, err)
	for i := range a.Outcomes {
		assert.Equal(t, a.Outcomes[i].Roll, b.Outcomes[i].Roll)
	}
	assert.Equal(t, 0, src.calls)

	page, err := l.ListTransactions(ctx, "u1", ledger.Page{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775815", page.Transactions[0].Metadata["seed"])

	again, err := e.DrawMulti(ctx, "u1", "standard", "a", 5, &seed)
	require.NoError(t, err)
	assert.True(t, again.Replayed)

	other := seed + 1
	_, err = e.DrawMulti(ctx, "u1", "standard", "a", 5, &other)
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	_, err = e.DrawMulti(ctx, "u1", "standard", "a", 5, nil)
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestConcurrentDrawsShareOneDebit(t *testing.T) {
	e, l, src := newEngine(t, 95)
	ctx := context.Background()

	_, err := l.TopUp(ctx, "u1", 100, "t1", nil)
	require.NoError(t, err)

	const workers = 10
	results := make([]*domain.DrawResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Draw(ctx, "u1", "premium", "race")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].TransactionID, results[i].TransactionID)
		assert.Equal(t, results[0].Outcomes, results[i].Outcomes)
		if !results[i].Replayed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, src.calls)

	w, err := l.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), w.Balance)
	page, err := l.ListTransactions(ctx, "u1", ledger.Page{})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 2)
}

func TestMetadataRoundTrip(t *testing.T) {
	seed := uint64(math.MaxUint64)
	meta := drawMetadata{PoolID: "standard", Count: 1, Seed: formatSeed(&seed), TotalWeight: 100, Rolls: []int64{42},
		Rewards: []drawnReward{{RewardID: "copper-ring", Name: "Copper Ring", Rarity: "common"}}}

	encoded, err := meta.encode()
	require.NoError(t, err)
	assert.Equal(t, float64(100), encoded["total_weight"])

	decoded, err := decodeMetadata(encoded)
	require.NoError(t, err)
	assert.Equal(t, meta.Rolls, decoded.Rolls)
	assert.Equal(t, meta.Rewards, decoded.Rewards)
	assert.Equal(t, int64(100), decoded.TotalWeight)
	assert.Equal(t, "18446744073709551615", decoded.Seed)
	assert.Empty(t, formatSeed(nil))
}
