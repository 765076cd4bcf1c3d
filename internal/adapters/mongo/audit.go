package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/event-ticketing/internal/domain"
	"github.com/ledgerline/event-ticketing/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger records committed ledger mutations in a mongo collection. It is
// a post-commit best-effort sink: the ledger logs and ignores its failures.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	ActorID   uuid.UUID `bson:"actor_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, actorID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogBooking(ctx context.Context, action string, b domain.Booking) error {
	data := map[string]interface{}{
		"booking_id": b.ID,
		"pool_id":    b.PoolID,
		"event_id":   b.EventID,
		"quantity":   b.Quantity,
	}
	return a.LogEvent(ctx, action, b.CustomerID, data)
}
