package domain

import "fmt"

// MaxTotalWeight bounds the total weight of a pool. Rolls and weights are
// stored in JSON metadata, where integers above 2^53 lose precision.
const MaxTotalWeight int64 = 1 << 53

// Pool Model, a weighted reward catalog offered for a fixed draw cost
type Pool struct {
	PoolID  string   `gorm:"primaryKey;size:64" json:"pool_id" yaml:"pool_id"`                  // Catalog key
	Name    string   `gorm:"size:128;not null" json:"name" yaml:"name"`                         // Display name
	Cost    int64    `gorm:"not null" json:"cost" yaml:"cost"`                                  // Price of one draw
	Rewards []Reward `gorm:"foreignKey:PoolID;references:PoolID" json:"rewards" yaml:"rewards"` // Ordered by Position
}

// TableName overrides the default "pools"
func (Pool) TableName() string { return "gacha_pools" }

// Reward Model, one weighted entry of a pool
type Reward struct {
	ID       uint   `gorm:"primaryKey" json:"-" yaml:"-"`                       // Surrogate key
	PoolID   string `gorm:"size:64;not null;index" json:"-" yaml:"-"`           // Owning pool
	RewardID string `gorm:"size:64;not null" json:"reward_id" yaml:"reward_id"` // Stable reward key
	Name     string `gorm:"size:128" json:"name" yaml:"name"`                   // Display name
	Rarity   string `gorm:"size:32" json:"rarity" yaml:"rarity"`                // common, rare, ...
	Weight   int64  `gorm:"not null" json:"weight" yaml:"weight"`               // Relative chance, > 0
	Position int    `gorm:"not null;default:0" json:"-" yaml:"-"`               // Walk order during selection
}

// TableName overrides the default "rewards"
func (Reward) TableName() string { return "gacha_rewards" }

// TotalWeight sums the weights of all rewards
func (p *Pool) TotalWeight() int64 {
	var total int64
	for _, r := range p.Rewards {
		total += r.Weight
	}
	return total
}

// Validate checks the pool can be drawn from. Failures wrap ErrInvalidPool.
func (p *Pool) Validate() error {
	if p.Cost <= 0 {
		return fmt.Errorf("%w: pool %q has non-positive cost %d", ErrInvalidPool, p.PoolID, p.Cost)
	}
	if len(p.Rewards) == 0 {
		return fmt.Errorf("%w: pool %q has no rewards", ErrInvalidPool, p.PoolID)
	}
	var total int64
	for _, r := range p.Rewards {
		if r.Weight <= 0 {
			return fmt.Errorf("%w: reward %q in pool %q has weight %d", ErrInvalidPool, r.RewardID, p.PoolID, r.Weight)
		}
		// Compared before adding so the sum cannot overflow
		if r.Weight > MaxTotalWeight-total {
			return fmt.Errorf("%w: pool %q total weight exceeds %d", ErrInvalidPool, p.PoolID, MaxTotalWeight)
		}
		total += r.Weight
	}
	return nil
}
