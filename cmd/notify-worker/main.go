package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerline/event-ticketing/internal/adapters/rabbit"
	"github.com/ledgerline/event-ticketing/internal/config"
	"github.com/ledgerline/event-ticketing/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifications.q", "booking.created", "event.updated")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	worker := NewNotifyWorker(consumer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("notify worker stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notify worker")
}

// NotifyWorker consumes notification requests and delivers them. Delivery
// here is a rendered email written to the log; a mail provider would slot in
// behind the same loop.
type NotifyWorker struct {
	consumer *rabbit.Consumer
	logger   observability.Logger
}

func NewNotifyWorker(consumer *rabbit.Consumer, logger observability.Logger) *NotifyWorker {
	return &NotifyWorker{consumer: consumer, logger: logger}
}

func (w *NotifyWorker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(d)
		}
	}
}

func (w *NotifyWorker) handle(d amqp.Delivery) {
	n, err := rabbit.DecodeNotification(d.Body)
	if err != nil {
		w.logger.WithError(err).Warn("dropping malformed notification")
		d.Nack(false, false)
		return
	}

	var subject string
	switch d.RoutingKey {
	case "booking.created":
		subject = fmt.Sprintf("Booking information for %s", n.BookingID)
	case "event.updated":
		subject = fmt.Sprintf("Event update for %s", n.EventID)
	default:
		subject = "Notification"
	}

	w.logger.
		WithField("subject", subject).
		WithField("message", n.Message).
		Info("notification sent")
	d.Ack(false)
}
