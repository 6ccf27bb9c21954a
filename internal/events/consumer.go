package events

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Handler processes one delivery body. Returning an error requeues the message
// unless the error wraps ErrPoison.
type Handler func(ctx context.Context, body []byte) error

// ErrPoison marks a message that can never be processed
var ErrPoison = errors.New("poison message")

// Consume binds queue to the ledger exchange for transaction.# and feeds each
// delivery to handle until ctx ends or the channel closes.
func Consume(ctx context.Context, ch *amqp.Channel, queue string, handle Handler) error {
	if err := ch.Qos(1, 0, false); err != nil { // One unacked message at a time
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "transaction.#", Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, queue+"_consumer", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	notifyClose := ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-notifyClose:
			if amqpErr != nil {
				return fmt.Errorf("channel closed: %w", amqpErr)
			}
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			settle(ctx, d, handle(ctx, d.Body))
		}
	}
}

func settle(_ context.Context, d amqp.Delivery, err error) {
	entry := logrus.WithField("routing_key", d.RoutingKey)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			entry.WithError(ackErr).Error("Failed to ack delivery")
		}
	case errors.Is(err, ErrPoison):
		entry.WithError(err).Warn("Dropping unprocessable delivery")
		if nackErr := d.Nack(false, false); nackErr != nil {
			entry.WithError(nackErr).Error("Failed to nack delivery")
		}
	default:
		entry.WithError(err).Error("Delivery failed, requeueing")
		if nackErr := d.Nack(false, true); nackErr != nil {
			entry.WithError(nackErr).Error("Failed to nack delivery")
		}
	}
}
