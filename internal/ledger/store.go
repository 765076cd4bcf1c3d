package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledgerline/event-ticketing/internal/domain"
)

// Tx is the transaction handle a ledger operation works against. Every
// method, including the reads, executes inside the same database transaction;
// the ForUpdate reads take an exclusive row lock so the availability counter
// and booking quantity observed here are the committed values, not a stale
// snapshot.
type Tx interface {
	PoolForUpdate(ctx context.Context, poolID uuid.UUID) (*domain.TicketPool, error)
	BookingForUpdate(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	AdjustAvailability(ctx context.Context, poolID uuid.UUID, delta int) error
	InsertBooking(ctx context.Context, b domain.Booking) error
	SetBookingQuantity(ctx context.Context, bookingID uuid.UUID, quantity int) error
	DeleteBooking(ctx context.Context, bookingID uuid.UUID) error
}

// Store runs fn inside a single all-or-nothing transaction. If fn returns an
// error nothing fn did is persisted. Contention that cannot be resolved by
// waiting for a row lock surfaces as domain.ErrSerializationFailure, which
// callers may retry.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Dispatcher receives fire-and-forget notification requests after a booking
// commits. Failures are logged by the ledger and never surfaced to the
// booking caller.
type Dispatcher interface {
	BookingCreated(ctx context.Context, bookingID uuid.UUID, message string) error
}

// AuditLog records committed ledger mutations, best-effort.
type AuditLog interface {
	LogBooking(ctx context.Context, action string, b domain.Booking) error
}
