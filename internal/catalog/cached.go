package catalog

import (
	"context"
	"time"

	"umbra_payment/internal/domain"
	"umbra_payment/internal/utils"

	"github.com/redis/go-redis/v9"
)

const (
	listKey    = "gacha:pools"
	poolPrefix = "gacha:pool:"
)

// CachedReader puts a Redis read-through cache in front of another Reader.
// Unknown pools are not cached, so a newly seeded pool is visible at once.
type CachedReader struct {
	next Reader
	rdb  redis.UniversalClient
	ttl  time.Duration
}

var _ Reader = (*CachedReader)(nil)

// NewCachedReader wraps next with a cache whose entries live for ttl
func NewCachedReader(next Reader, rdb redis.UniversalClient, ttl time.Duration) *CachedReader {
	return &CachedReader{next: next, rdb: rdb, ttl: ttl}
}

// GetPool implements Reader
func (c *CachedReader) GetPool(ctx context.Context, poolID string) (*domain.Pool, error) {
	return utils.ReadThrough(ctx, c.rdb, poolPrefix+poolID, c.ttl, func(ctx context.Context) (*domain.Pool, error) {
		return c.next.GetPool(ctx, poolID)
	})
}

// ListPools implements Reader
func (c *CachedReader) ListPools(ctx context.Context) ([]domain.Pool, error) {
	return utils.ReadThrough(ctx, c.rdb, listKey, c.ttl, c.next.ListPools)
}

// Invalidate drops the cached list and the given pools
func (c *CachedReader) Invalidate(ctx context.Context, poolIDs ...string) error {
	return InvalidateCache(ctx, c.rdb, poolIDs...)
}

// InvalidateCache drops the cached list and the given pools from rdb. Run it
// after reseeding so readers do not serve the old catalog until the TTL ends.
func InvalidateCache(ctx context.Context, rdb redis.UniversalClient, poolIDs ...string) error {
	return utils.DeleteCache(ctx, rdb, cacheKeys(poolIDs)...)
}

func cacheKeys(poolIDs []string) []string {
	keys := []string{listKey}
	for _, id := range poolIDs {
		keys = append(keys, poolPrefix+id)
	}
	return keys
}
