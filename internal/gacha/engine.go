package gacha

import (
	"context"
	"errors"
	"fmt"
	"math"

	"umbra_payment/internal/domain"
	"umbra_payment/internal/ledger"

	"github.com/sirupsen/logrus"
)

// MaxDrawCount caps the draws paid for by one request
const MaxDrawCount = 50

// PoolReader resolves pools by id, failing with domain.ErrPoolNotFound
type PoolReader interface {
	GetPool(ctx context.Context, poolID string) (*domain.Pool, error)
}

// Debiter is the part of the wallet ledger the engine pays through
type Debiter interface {
	FindTransaction(ctx context.Context, userID string, kind domain.Kind, key string) (*domain.Transaction, error)
	DebitForDraw(ctx context.Context, userID string, amount int64, key string, annotate ledger.Annotator, match ledger.Matcher) (*domain.Transaction, error)
}

// Engine performs debit-then-draw as one unit of work
type Engine struct {
	pools  PoolReader
	ledger Debiter
	rng    RandomSource
}

// NewEngine creates an engine drawing with rng
func NewEngine(pools PoolReader, l Debiter, rng RandomSource) *Engine {
	return &Engine{pools: pools, ledger: l, rng: rng}
}

// drawRequest is what a retry must repeat to get the recorded outcome back
type drawRequest struct {
	poolID string
	count  int
	seed   string
}

// Draw charges the pool cost once and returns a single outcome
func (e *Engine) Draw(ctx context.Context, userID, poolID, key string) (*domain.DrawResult, error) {
	return e.DrawMulti(ctx, userID, poolID, key, 1, nil)
}

// DrawMulti charges cost × count in one DRAW_DEBIT and draws count rewards.
// A non-nil seed draws from a generator seeded for this call only.
// Replaying the key returns the recorded outcome without a new debit or roll,
// whatever the pool looks like now.
func (e *Engine) DrawMulti(ctx context.Context, userID, poolID, key string, count int, seed *uint64) (*domain.DrawResult, error) {
	if count < 1 || count > MaxDrawCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", domain.ErrInvalidRequest, MaxDrawCount)
	}
	req := drawRequest{poolID: poolID, count: count, seed: formatSeed(seed)}

	existing, err := e.ledger.FindTransaction(ctx, userID, domain.KindDrawDebit, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return e.finish(ctx, userID, existing, req, nil)
	}

	pool, err := e.resolvePool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	if pool.Cost > math.MaxInt64/int64(count) {
		return nil, fmt.Errorf("%w: cost of %d draws overflows", domain.ErrInvalidPool, count)
	}
	amount := pool.Cost * int64(count)
	total := pool.TotalWeight()
	rng := e.rng
	if seed != nil {
		rng = NewSource(seed)
	}

	annotate := func(txn *domain.Transaction) error {
		meta := drawMetadata{
			PoolID:      pool.PoolID,
			Count:       count,
			Seed:        req.seed,
			TotalWeight: total,
			DrawnAt:     txn.CreatedAt,
			Rolls:       make([]int64, 0, count),
			Rewards:     make([]drawnReward, 0, count),
		}
		for i := 0; i < count; i++ {
			roll := rng.Int64N(total)
			reward, err := Select(pool, roll)
			if err != nil {
				return err
			}
			meta.Rolls = append(meta.Rolls, roll)
			meta.Rewards = append(meta.Rewards, drawnReward{RewardID: reward.RewardID, Name: reward.Name, Rarity: reward.Rarity})
		}
		encoded, err := meta.encode()
		if err != nil {
			return err
		}
		txn.Metadata = encoded
		return nil
	}
	// A concurrent request with the same key may commit between the lookup
	// above and our lock; its debit is matched on the request, not the amount.
	match := func(existing *domain.Transaction) error {
		_, err := matchRequest(existing, req)
		return err
	}

	txn, err := e.ledger.DebitForDraw(ctx, userID, amount, key, annotate, match)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, userID, txn, req, pool)
}

func (e *Engine) resolvePool(ctx context.Context, poolID string) (*domain.Pool, error) {
	pool, err := e.pools.GetPool(ctx, poolID)
	if errors.Is(err, domain.ErrPoolNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading pool %q: %w", domain.ErrUnavailable, poolID, err)
	}
	return pool, nil
}

func (e *Engine) finish(ctx context.Context, userID string, txn *domain.Transaction, req drawRequest, pool *domain.Pool) (*domain.DrawResult, error) {
	result, err := e.result(ctx, txn, req, pool)
	if err != nil {
		return nil, err
	}
	entry := logrus.WithFields(logrus.Fields{
		"user_id":        userID,         // Payer
		"pool_id":        result.PoolID,  // Pool drawn from
		"count":          req.count,      // Draws paid for
		"transaction_id": txn.ID,         // DRAW_DEBIT transaction
		"seeded":         req.seed != "", // Per-request seed
	})
	if result.Replayed {
		entry.Info("Draw replayed")
	} else {
		entry.Info("Draw completed")
	}
	return result, nil
}

// matchRequest decodes the outcome stored on a DRAW_DEBIT and checks that it
// was made for req
func matchRequest(txn *domain.Transaction, req drawRequest) (*drawMetadata, error) {
	meta, err := decodeMetadata(txn.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s: %v", domain.ErrUnavailable, txn.ID, err)
	}
	if meta.PoolID != req.poolID || meta.Count != req.count || meta.Seed != req.seed {
		return nil, fmt.Errorf("%w: key %q was used for %d draws from pool %q", domain.ErrIdempotencyConflict, txn.IdempotencyKey, meta.Count, meta.PoolID)
	}
	return meta, nil
}

// result rebuilds the outcome from the stored metadata, so fresh draws and
// replays go through the same path. pool may be nil for a replay; it is only
// read when the stored rewards have to be recomputed.
func (e *Engine) result(ctx context.Context, txn *domain.Transaction, req drawRequest, pool *domain.Pool) (*domain.DrawResult, error) {
	meta, err := matchRequest(txn, req)
	if err != nil {
		return nil, err
	}
	if len(meta.Rolls) != meta.Count {
		return nil, fmt.Errorf("%w: transaction %s records %d rolls for %d draws", domain.ErrUnavailable, txn.ID, len(meta.Rolls), meta.Count)
	}
	if len(meta.Rewards) != len(meta.Rolls) {
		if pool == nil {
			if pool, err = e.pools.GetPool(ctx, meta.PoolID); err != nil {
				return nil, fmt.Errorf("%w: rewards of transaction %s cannot be recomputed: %w", domain.ErrUnavailable, txn.ID, err)
			}
		}
		if err := recompute(meta, pool); err != nil {
			return nil, err
		}
		logrus.WithField("transaction_id", txn.ID).Warn("Draw outcome recomputed from stored rolls")
	}
	drawnAt := meta.DrawnAt
	if drawnAt.IsZero() {
		drawnAt = txn.CreatedAt
	}

	result := &domain.DrawResult{
		TransactionID: txn.ID,
		PoolID:        meta.PoolID,
		Cost:          txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
		TotalWeight:   meta.TotalWeight,
		DrawnAt:       drawnAt,
		Outcomes:      make([]domain.DrawOutcome, len(meta.Rolls)),
		Replayed:      txn.Replayed,
	}
	for i, roll := range meta.Rolls {
		r := meta.Rewards[i]
		result.Outcomes[i] = domain.DrawOutcome{
			TransactionID: txn.ID,
			PoolID:        meta.PoolID,
			RewardID:      r.RewardID,
			Name:          r.Name,
			Rarity:        r.Rarity,
			Roll:          roll,
			DrawnAt:       drawnAt,
		}
	}
	return result, nil
}

// recompute fills the reward list from the rolls. It only works against the
// pool the rolls were made on.
func recompute(meta *drawMetadata, pool *domain.Pool) error {
	if meta.TotalWeight != pool.TotalWeight() {
		return fmt.Errorf("%w: pool %q changed since the draw (total weight %d, now %d)",
			domain.ErrUnavailable, pool.PoolID, meta.TotalWeight, pool.TotalWeight())
	}
	meta.Rewards = make([]drawnReward, 0, len(meta.Rolls))
	for _, roll := range meta.Rolls {
		reward, err := Select(pool, roll)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
		meta.Rewards = append(meta.Rewards, drawnReward{RewardID: reward.RewardID, Name: reward.Name, Rarity: reward.Rarity})
	}
	return nil
}
