package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"umbra_payment/internal/audit"
	"umbra_payment/internal/config"
	"umbra_payment/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const queue = "audit_queue"

// Archives every committed ledger transaction published on RabbitMQ into MongoDB
func main() {
	cfg := config.LoadConfig()
	config.SetupLogger(cfg)
	if err := run(cfg); err != nil {
		logrus.Fatal(err) // Non-zero exit so the supervisor restarts the worker
	}
	logrus.Info("Worker stopped")
}

func run(cfg *config.Config) error {
	if cfg.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required")
	}

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to create MongoDB client: %w", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logrus.Errorf("failed to disconnect MongoDB: %v", err)
		}
	}()
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	repo := audit.NewRepository(mongoClient, cfg.MongoDB)

	conn, err := amqp.DialConfig(cfg.RabbitMQURL, amqp.Config{
		Properties: amqp.Table{"connection_name": "audit_worker"},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	defer ch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithField("queue", queue).Info("Audit worker started")
	return events.Consume(ctx, ch, queue, audit.Handler(repo, 5*time.Second))
}
