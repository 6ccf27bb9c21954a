// Package gacha draws weighted rewards from catalog pools and pays for them
// through the wallet ledger in one atomic unit of work.
package gacha

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"umbra_payment/internal/domain"
)

// RandomSource yields uniform integers in [0, n)
type RandomSource interface {
	Int64N(n int64) int64
}

// lockedSource serializes access to a PCG generator shared by all requests
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns the production random source. A non-nil seed makes the
// sequence of rolls reproducible; otherwise the generator is seeded from the OS.
func NewSource(seed *uint64) RandomSource {
	var hi, lo uint64
	if seed != nil {
		hi, lo = *seed, *seed^0x9e3779b97f4a7c15
	} else {
		hi, lo = rand.Uint64(), rand.Uint64()
	}
	return &lockedSource{rng: rand.New(rand.NewPCG(hi, lo))}
}

func (s *lockedSource) Int64N(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int64N(n)
}

// Select maps a roll in [0, total weight) to a reward: rewards are walked in
// order and the first one whose cumulative weight exceeds the roll wins.
// It is pure, so a stored roll always resolves to the same reward.
func Select(pool *domain.Pool, roll int64) (domain.Reward, error) {
	total := pool.TotalWeight()
	if roll < 0 || roll >= total {
		return domain.Reward{}, fmt.Errorf("%w: roll %d outside [0, %d) for pool %q", domain.ErrInvalidPool, roll, total, pool.PoolID)
	}
	var cumulative int64
	for _, r := range pool.Rewards {
		cumulative += r.Weight
		if roll < cumulative {
			return r, nil
		}
	}
	return domain.Reward{}, fmt.Errorf("%w: pool %q has no reward for roll %d", domain.ErrInvalidPool, pool.PoolID, roll)
}
