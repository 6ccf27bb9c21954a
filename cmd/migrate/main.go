package main

import (
	"context" // Context for the cache flush
	"flag"    // Command line flags

	"umbra_payment/internal/catalog" // Pool definitions
	"umbra_payment/internal/config"  // Custom import path (Config)
	"umbra_payment/internal/db"      // Custom import path (Database)

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main entry point for migration
func main() {
	seed := flag.Bool("seed", true, "upsert the pool catalog after migrating")
	flag.Parse()

	cfg := config.LoadConfig() // Load configuration
	config.SetupLogger(cfg)

	conn, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		logrus.Fatal(err)
	}
	if !*seed {
		return
	}

	pools, err := catalog.LoadPools(cfg.CatalogFile) // Embedded default when CATALOG_FILE is empty
	if err != nil {
		logrus.Fatalf("failed to load catalog: %v", err)
	}
	if err := db.SeedPools(conn, pools); err != nil {
		logrus.Fatalf("failed to seed pools: %v", err)
	}
	logrus.WithField("pools", len(pools)).Info("Catalog seeded")

	// Drop cached pools so servers read the new catalog
	if cfg.RedisAddr == "" {
		return
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	defer redisClient.Close()
	ids := make([]string, 0, len(pools))
	for _, p := range pools {
		ids = append(ids, p.PoolID)
	}
	if err := catalog.InvalidateCache(context.Background(), redisClient, ids...); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate catalog cache, entries expire after CATALOG_CACHE_TTL")
		return
	}
	logrus.Info("Catalog cache invalidated")
}
