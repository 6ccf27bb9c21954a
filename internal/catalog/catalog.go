// Package catalog serves the read-only gacha pools. Pools come from a YAML
// file, from the database, or from either of them behind a Redis cache.
package catalog

import (
	"context"
	"fmt"

	"umbra_payment/internal/domain"
)

// Reader looks pools up. GetPool fails with domain.ErrPoolNotFound for an
// unknown id; pools are returned as stored and may still fail Validate.
type Reader interface {
	GetPool(ctx context.Context, poolID string) (*domain.Pool, error)
	ListPools(ctx context.Context) ([]domain.Pool, error)
}

func notFound(poolID string) error {
	return fmt.Errorf("%w: %q", domain.ErrPoolNotFound, poolID)
}

// clonePool copies p so callers cannot mutate a shared catalog entry
func clonePool(p *domain.Pool) *domain.Pool {
	c := *p
	c.Rewards = append([]domain.Reward(nil), p.Rewards...)
	return &c
}
