// Package outbox drains the transactional outbox: records written in the
// same transaction as an entity mutation are published to the topic exchange
// after commit, at-least-once.
package outbox

import (
	"context"
	"time"

	"github.com/ledgerline/event-ticketing/internal/adapters/crdb"
	"github.com/ledgerline/event-ticketing/internal/adapters/rabbit"
	"github.com/ledgerline/event-ticketing/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	repo      *crdb.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
	interval  time.Duration
	batchSize int
}

func NewPublisher(repo *crdb.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{
		repo:      repo,
		rabbitPub: rabbitPub,
		logger:    logger,
		interval:  5 * time.Second,
		batchSize: 10,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, p.batchSize)
	if err != nil {
		p.logger.WithError(err).Error("failed to read outbox")
		return
	}
	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.PublishWithRetry(ctx, rec.EventType, msg, 3); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("failed to publish outbox record")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("failed to mark outbox record published")
		}
	}

	if lag, err := p.repo.OldestUnpublishedAge(ctx, time.Now()); err == nil {
		observability.OutboxLag.Set(lag.Seconds())
	}
}
