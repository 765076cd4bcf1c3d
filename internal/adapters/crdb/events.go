package crdb

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ledgerline/event-ticketing/internal/domain"
)

func (r *Repository) InsertEvent(ctx context.Context, e domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, organizer_id, title, venue, description, starts_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.OrganizerID, e.Title, e.Venue, e.Description, e.StartsAt, e.CreatedAt)
	return errors.Wrap(err, "insert event")
}

// UpdateEvent writes the event row and an event.updated outbox record in the
// same transaction, so the notification is published only for committed
// edits.
func (r *Repository) UpdateEvent(ctx context.Context, e domain.Event) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE events SET title = $2, venue = $3, description = $4, starts_at = $5
			WHERE id = $1
		`, e.ID, e.Title, e.Venue, e.Description, e.StartsAt)
		if err != nil {
			return errors.Wrap(err, "update event")
		}
		if result.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		payload, _ := json.Marshal(map[string]interface{}{"event_id": e.ID, "title": e.Title})
		return r.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "event",
			AggregateID:   e.ID,
			EventType:     "event.updated",
			Payload:       payload,
			DedupeKey:     uuid.New().String(),
		})
	})
}

func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	// ticket_pools rows go with the event via ON DELETE CASCADE.
	result, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete event")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) EventByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var e domain.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, organizer_id, title, venue, description, starts_at, created_at
		FROM events WHERE id = $1
	`, id).Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Venue, &e.Description, &e.StartsAt, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get event")
	}
	return &e, nil
}

func (r *Repository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return r.queryEvents(ctx, `
		SELECT id, organizer_id, title, venue, description, starts_at, created_at
		FROM events ORDER BY starts_at ASC
	`)
}

func (r *Repository) EventsByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]domain.Event, error) {
	return r.queryEvents(ctx, `
		SELECT id, organizer_id, title, venue, description, starts_at, created_at
		FROM events WHERE organizer_id = $1 ORDER BY starts_at ASC
	`, organizerID)
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Venue, &e.Description, &e.StartsAt, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *Repository) InsertPool(ctx context.Context, p domain.TicketPool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ticket_pools (id, event_id, kind, price, capacity, availability, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.EventID, p.Kind, p.Price, p.Capacity, p.Availability, p.CreatedAt)
	return errors.Wrap(err, "insert ticket pool")
}

// UpdatePool applies an organizer edit of kind, price and availability. The
// availability write goes through the row lock so it serializes against
// in-flight bookings; the check constraint still rejects a negative value.
func (r *Repository) UpdatePool(ctx context.Context, id uuid.UUID, kind string, price float64, availability int) (*domain.TicketPool, error) {
	if availability < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	var p domain.TicketPool
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, event_id, kind, price, capacity, availability, created_at
			FROM ticket_pools WHERE id = $1 FOR UPDATE
		`, id).Scan(&p.ID, &p.EventID, &p.Kind, &p.Price, &p.Capacity, &p.Availability, &p.CreatedAt)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "lock ticket pool")
		}
		p.Kind, p.Price, p.Availability = kind, price, availability
		_, err = tx.Exec(ctx, `
			UPDATE ticket_pools SET kind = $2, price = $3, availability = $4 WHERE id = $1
		`, id, kind, price, availability)
		return errors.Wrap(err, "update ticket pool")
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) PoolByID(ctx context.Context, id uuid.UUID) (*domain.TicketPool, error) {
	var p domain.TicketPool
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, kind, price, capacity, availability, created_at
		FROM ticket_pools WHERE id = $1
	`, id).Scan(&p.ID, &p.EventID, &p.Kind, &p.Price, &p.Capacity, &p.Availability, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get ticket pool")
	}
	return &p, nil
}

func (r *Repository) PoolsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.TicketPool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, kind, price, capacity, availability, created_at
		FROM ticket_pools WHERE event_id = $1 ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "list ticket pools")
	}
	defer rows.Close()

	var pools []domain.TicketPool
	for rows.Next() {
		var p domain.TicketPool
		if err := rows.Scan(&p.ID, &p.EventID, &p.Kind, &p.Price, &p.Capacity, &p.Availability, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan ticket pool")
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (r *Repository) BookingsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `
		SELECT id, customer_id, pool_id, event_id, quantity, created_at
		FROM bookings WHERE customer_id = $1 ORDER BY created_at DESC
	`, customerID)
}

func (r *Repository) BookingsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Booking, error) {
	return r.queryBookings(ctx, `
		SELECT id, customer_id, pool_id, event_id, quantity, created_at
		FROM bookings WHERE event_id = $1 ORDER BY created_at DESC
	`, eventID)
}

func (r *Repository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list bookings")
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.PoolID, &b.EventID, &b.Quantity, &b.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan booking")
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
