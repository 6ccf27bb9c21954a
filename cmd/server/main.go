package main

import (
	"context"   // Context for startup checks and shutdown
	"errors"    // Matching http.ErrServerClosed
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Graceful shutdown
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"umbra_payment/internal/api"             // Custom package for API handlers
	"umbra_payment/internal/catalog"         // Pool catalog readers
	"umbra_payment/internal/config"          // Custom package for configuration
	"umbra_payment/internal/db"              // Database bootstrap
	"umbra_payment/internal/events"          // Ledger events
	"umbra_payment/internal/gacha"           // Draw engine
	"umbra_payment/internal/ledger"          // Wallet ledger
	"umbra_payment/internal/store"           // Ledger store contract and memory store
	"umbra_payment/internal/store/gormstore" // SQL ledger store

	"github.com/gin-gonic/gin"            // Gin web framework
	amqp "github.com/rabbitmq/amqp091-go" // RabbitMQ client
	"github.com/redis/go-redis/v9"        // Redis client
	"github.com/sirupsen/logrus"          // Logrus for structured logging
	"gorm.io/gorm"                        // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration
	config.SetupLogger(cfg)    // Setup logger

	// Ledger store: in-process unless a SQL driver is configured
	var (
		ledgerStore store.LedgerStore
		sqlDB       *gorm.DB
	)
	if cfg.DBDriver == "memory" {
		ledgerStore = store.NewMemoryStore()
		logrus.Warn("Using the in-memory ledger store, balances are lost on restart")
	} else {
		conn, err := db.Open(cfg)
		if err != nil {
			logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
		}
		sqlDB = conn
		ledgerStore = gormstore.New(conn)
	}

	// Pool catalog
	var pools catalog.Reader
	switch cfg.CatalogSrc {
	case "db":
		if sqlDB == nil {
			logrus.Fatal("CATALOG_SOURCE=db needs a SQL DB_DRIVER")
		}
		pools = catalog.NewGormReader(sqlDB)
	default:
		defs, err := catalog.LoadPools(cfg.CatalogFile)
		if err != nil {
			logrus.Fatalf("failed to load catalog: %v", err)
		}
		pools = catalog.NewStaticReader(defs)
	}

	// Optional Redis cache in front of the catalog
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		defer redisClient.Close()
		// Test Redis connection
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		pools = catalog.NewCachedReader(pools, redisClient, cfg.CatalogTTL)
	}

	// Optional ledger events
	var publisher events.Publisher
	if cfg.RabbitMQURL != "" {
		conn, err := amqp.DialConfig(cfg.RabbitMQURL, amqp.Config{
			Properties: amqp.Table{"connection_name": api.ServiceName + "_publisher"},
		})
		if err != nil {
			logrus.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logrus.Fatalf("failed to open RabbitMQ channel: %v", err)
		}
		defer ch.Close()
		if publisher, err = events.NewRabbitMQPublisher(ch); err != nil {
			logrus.Fatalf("failed to set up publisher: %v", err)
		}
	}

	l := ledger.New(ledgerStore, ledger.Options{
		AutoProvision: cfg.WalletAutoProvision, // Create wallets on first read
		OpTimeout:     cfg.LedgerOpTimeout,     // Bound of one unit of work
		Publisher:     publisher,               // Nil when events are disabled
	})
	engine := gacha.NewEngine(pools, l, gacha.NewSource(cfg.GachaSeed))
	if cfg.GachaSeed != nil {
		logrus.WithField("seed", *cfg.GachaSeed).Warn("Gacha random source is seeded, draws are reproducible")
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default() // Gin router instance
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	api.RegisterRoutes(r, api.Deps{Ledger: l, Engine: engine, Catalog: pools, JWTSecret: cfg.JWTSecret})
	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is empty, wallet routes are not authenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("Server running on %s", cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("forced shutdown: %v", err)
	}
}
