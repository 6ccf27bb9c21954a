package db

import (
	"fmt"

	"umbra_payment/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Association handling
)

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(&domain.Wallet{}, &domain.Transaction{}, &domain.Pool{}, &domain.Reward{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}

// SeedPools upserts the given pool definitions, replacing each pool's reward list
func SeedPools(db *gorm.DB, pools []domain.Pool) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, p := range pools {
			rewards := make([]domain.Reward, len(p.Rewards))
			for i, r := range p.Rewards {
				r.ID = 0
				r.PoolID = p.PoolID
				r.Position = i // Keep the file order as the selection walk order
				rewards[i] = r
			}
			p.Rewards = nil
			if err := tx.Omit(clause.Associations).Save(&p).Error; err != nil {
				return fmt.Errorf("save pool %s: %w", p.PoolID, err)
			}
			if err := tx.Where("pool_id = ?", p.PoolID).Delete(&domain.Reward{}).Error; err != nil {
				return fmt.Errorf("clear rewards of %s: %w", p.PoolID, err)
			}
			if len(rewards) > 0 {
				if err := tx.Create(&rewards).Error; err != nil {
					return fmt.Errorf("insert rewards of %s: %w", p.PoolID, err)
				}
			}
			logrus.WithFields(logrus.Fields{
				"pool_id": p.PoolID,     // Pool key
				"rewards": len(rewards), // Reward count
			}).Info("Pool seeded")
		}
		return nil
	})
}
