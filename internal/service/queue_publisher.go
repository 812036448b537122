package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/restockr/restockr-api/internal/queue"
)

// EventPublisher announces account events to asynchronous consumers.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, ev queue.AccountRegisteredEvent) error
}

// PublisherFunc adapts a function to EventPublisher.  With the broker
// disabled the mailer itself is plugged in this way and emails go out inline.
type PublisherFunc func(ctx context.Context, ev queue.AccountRegisteredEvent) error

func (f PublisherFunc) PublishAccountRegistered(ctx context.Context, ev queue.AccountRegisteredEvent) error {
	return f(ctx, ev)
}

// AMQPPublisher publishes to a durable RabbitMQ queue.  Signups are rare
// enough that a connection per message is acceptable and keeps the publisher
// free of reconnect state.
type AMQPPublisher struct {
	URL   string
	Queue string
}

func NewAMQPPublisher(url, queueName string) *AMQPPublisher {
	return &AMQPPublisher{URL: url, Queue: queueName}
}

// PublishAccountRegistered marks the message persistent so it survives a
// broker restart.
func (p *AMQPPublisher) PublishAccountRegistered(ctx context.Context, ev queue.AccountRegisteredEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
