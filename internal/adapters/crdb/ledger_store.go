package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ledgerline/event-ticketing/internal/domain"
	"github.com/ledgerline/event-ticketing/internal/ledger"
)

// LedgerStore adapts the repository to the ledger's Store contract. Each
// ledger operation runs in one SERIALIZABLE transaction; the ForUpdate reads
// take exclusive row locks so concurrent mutations of the same pool
// serialize on its availability counter.
type LedgerStore struct {
	repo *Repository
}

func NewLedgerStore(repo *Repository) *LedgerStore {
	return &LedgerStore{repo: repo}
}

func (s *LedgerStore) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) PoolForUpdate(ctx context.Context, poolID uuid.UUID) (*domain.TicketPool, error) {
	var p domain.TicketPool
	err := t.tx.QueryRow(ctx, `
		SELECT id, event_id, kind, price, capacity, availability, created_at
		FROM ticket_pools WHERE id = $1 FOR UPDATE
	`, poolID).Scan(&p.ID, &p.EventID, &p.Kind, &p.Price, &p.Capacity, &p.Availability, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock ticket pool")
	}
	return &p, nil
}

func (t *ledgerTx) BookingForUpdate(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := t.tx.QueryRow(ctx, `
		SELECT id, customer_id, pool_id, event_id, quantity, created_at
		FROM bookings WHERE id = $1 FOR UPDATE
	`, bookingID).Scan(&b.ID, &b.CustomerID, &b.PoolID, &b.EventID, &b.Quantity, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock booking")
	}
	return &b, nil
}

func (t *ledgerTx) AdjustAvailability(ctx context.Context, poolID uuid.UUID, delta int) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE ticket_pools SET availability = availability + $2 WHERE id = $1
	`, poolID, delta)
	if err != nil {
		return errors.Wrap(err, "adjust availability")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (id, customer_id, pool_id, event_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.CustomerID, b.PoolID, b.EventID, b.Quantity, b.CreatedAt)
	return errors.Wrap(err, "insert booking")
}

func (t *ledgerTx) SetBookingQuantity(ctx context.Context, bookingID uuid.UUID, quantity int) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE bookings SET quantity = $2 WHERE id = $1
	`, bookingID, quantity)
	if err != nil {
		return errors.Wrap(err, "set booking quantity")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) DeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	result, err := t.tx.Exec(ctx, `
		DELETE FROM bookings WHERE id = $1
	`, bookingID)
	if err != nil {
		return errors.Wrap(err, "delete booking")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
