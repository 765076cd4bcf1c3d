// Package ledger owns the ticket-availability invariant: a pool's
// availability never goes negative, and every committed booking's quantity
// has been deducted from it at commit time. All three booking operations are
// read-validate-write under an exclusive per-pool lock, so concurrent
// mutations against the same pool behave as if serialized against a single
// counter.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ledgerline/event-ticketing/internal/domain"
	"github.com/ledgerline/event-ticketing/internal/observability"
)

type Ledger struct {
	store    Store
	dispatch Dispatcher
	audit    AuditLog
	logger   observability.Logger
}

// Option configures a Ledger beyond its required store.
type Option func(*Ledger)

// WithDispatcher attaches a post-commit notification dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(l *Ledger) { l.dispatch = d }
}

// WithAuditLog attaches a post-commit audit sink.
func WithAuditLog(a AuditLog) Option {
	return func(l *Ledger) { l.audit = a }
}

func New(store Store, logger observability.Logger, opts ...Option) *Ledger {
	l := &Ledger{store: store, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateBooking reserves quantity tickets from the pool for the customer.
// The availability check and the decrement happen under the same pool row
// lock, so two concurrent creates can never both pass validation against the
// same free quantity.
func (l *Ledger) CreateBooking(ctx context.Context, poolID, customerID uuid.UUID, quantity int) (*domain.Booking, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var booking domain.Booking
	err := l.store.WithTx(ctx, func(tx Tx) error {
		pool, err := tx.PoolForUpdate(ctx, poolID)
		if err != nil {
			return err
		}
		if quantity > pool.Availability {
			return domain.ErrInsufficientAvailability
		}
		if err := tx.AdjustAvailability(ctx, poolID, -quantity); err != nil {
			return err
		}
		booking = domain.NewBooking(poolID, pool.EventID, customerID, quantity)
		return tx.InsertBooking(ctx, booking)
	})
	if err != nil {
		l.count("create", err)
		return nil, err
	}
	l.count("create", nil)

	l.afterCommit(ctx, "booking.created", booking, true)
	return &booking, nil
}

// UpdateBooking changes the booking's quantity and reconciles the delta
// against the pool. The previous quantity is re-read from the locked booking
// row, never from a caller-supplied copy, so a concurrent update or cancel on
// the same booking cannot be lost.
func (l *Ledger) UpdateBooking(ctx context.Context, bookingID, customerID uuid.UUID, newQuantity int) (*domain.Booking, error) {
	if newQuantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var booking domain.Booking
	err := l.store.WithTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.CustomerID != customerID {
			// Not-found, not forbidden: existence must not leak to non-owners.
			return domain.ErrNotFound
		}
		pool, err := tx.PoolForUpdate(ctx, b.PoolID)
		if err != nil {
			return err
		}
		delta := newQuantity - b.Quantity
		if delta > pool.Availability {
			return domain.ErrInsufficientAvailability
		}
		if err := tx.AdjustAvailability(ctx, b.PoolID, -delta); err != nil {
			return err
		}
		if err := tx.SetBookingQuantity(ctx, bookingID, newQuantity); err != nil {
			return err
		}
		b.Quantity = newQuantity
		booking = *b
		return nil
	})
	if err != nil {
		l.count("update", err)
		return nil, err
	}
	l.count("update", nil)

	l.afterCommit(ctx, "booking.updated", booking, false)
	return &booking, nil
}

// CancelBooking reimburses the booking's quantity to its pool and deletes the
// booking, atomically. Cancelling a booking that no longer exists returns
// NotFound with no side effect, so a second cancel is final.
func (l *Ledger) CancelBooking(ctx context.Context, bookingID, customerID uuid.UUID) error {
	var booking domain.Booking
	err := l.store.WithTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.CustomerID != customerID {
			return domain.ErrNotFound
		}
		// The reimbursement is a commutative increment; it still has to be
		// atomic with the delete so a failed delete never leaves a stray
		// credit on the pool.
		if err := tx.AdjustAvailability(ctx, b.PoolID, b.Quantity); err != nil {
			return err
		}
		if err := tx.DeleteBooking(ctx, bookingID); err != nil {
			return err
		}
		booking = *b
		return nil
	})
	if err != nil {
		l.count("cancel", err)
		return err
	}
	l.count("cancel", nil)

	l.afterCommit(ctx, "booking.cancelled", booking, false)
	return nil
}

func (l *Ledger) count(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInsufficientAvailability):
		outcome = "rejected"
		observability.InsufficientAvailabilityTotal.Inc()
	case errors.Is(err, domain.ErrSerializationFailure), errors.Is(err, domain.ErrConflict):
		outcome = "conflict"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidQuantity):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	observability.BookingsTotal.WithLabelValues(op, outcome).Inc()
}

// afterCommit runs the best-effort side effects of a committed mutation.
// Nothing here can roll back the transaction; failures are logged only.
func (l *Ledger) afterCommit(ctx context.Context, action string, b domain.Booking, notify bool) {
	if notify && l.dispatch != nil {
		msg := fmt.Sprintf("Your booking %s for %d ticket(s) is confirmed", b.ID, b.Quantity)
		if err := l.dispatch.BookingCreated(ctx, b.ID, msg); err != nil {
			l.logger.WithError(err).WithField("booking_id", b.ID).Warn("notification dispatch failed")
		}
	}
	if l.audit != nil {
		if err := l.audit.LogBooking(ctx, action, b); err != nil {
			l.logger.WithError(err).WithField("booking_id", b.ID).Warn("audit write failed")
		}
	}
}
