package catalog

import (
	"context"
	"errors"

	"umbra_payment/internal/domain"

	"gorm.io/gorm"
)

// GormReader reads pools seeded into the gacha_pools / gacha_rewards tables
type GormReader struct {
	db *gorm.DB
}

var _ Reader = (*GormReader)(nil)

// NewGormReader creates a reader on db
func NewGormReader(db *gorm.DB) *GormReader {
	return &GormReader{db: db}
}

func orderedRewards(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// GetPool implements Reader
func (r *GormReader) GetPool(ctx context.Context, poolID string) (*domain.Pool, error) {
	var pool domain.Pool
	err := r.db.WithContext(ctx).Preload("Rewards", orderedRewards).Where("pool_id = ?", poolID).First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(poolID)
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// ListPools implements Reader
func (r *GormReader) ListPools(ctx context.Context) ([]domain.Pool, error) {
	var pools []domain.Pool
	if err := r.db.WithContext(ctx).Preload("Rewards", orderedRewards).Order("pool_id ASC").Find(&pools).Error; err != nil {
		return nil, err
	}
	return pools, nil
}
