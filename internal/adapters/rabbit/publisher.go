package rabbit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/event-ticketing/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

const Exchange = "etb.events"

type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	return p.ch.PublishWithContext(ctx, Exchange, key, false, false, msg)
}

// PublishWithRetry retries transient publish failures with exponential
// backoff before giving up.
func (p *Publisher) PublishWithRetry(ctx context.Context, key string, msg amqp.Publishing, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = p.Publish(ctx, key, msg); err == nil {
			return nil
		}
		observability.RabbitPublishRetries.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * 100 * time.Millisecond):
		}
	}
	return err
}

// Dispatcher publishes booking notification requests. It satisfies the
// ledger's Dispatcher contract: callers treat failures as best-effort.
type Dispatcher struct {
	pub *Publisher
}

func NewDispatcher(pub *Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

func (d *Dispatcher) BookingCreated(ctx context.Context, bookingID uuid.UUID, message string) error {
	body, err := EncodeNotification(Notification{BookingID: bookingID, Message: message})
	if err != nil {
		return err
	}
	return d.pub.PublishWithRetry(ctx, "booking.created", amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        body,
	}, 3)
}
