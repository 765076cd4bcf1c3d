package domain

import (
	"time"

	"github.com/google/uuid"
)

type Principal struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrganizerProfile is attached 1:1 to a principal with RoleOrganizer.
type OrganizerProfile struct {
	ID          uuid.UUID `json:"id"`
	PrincipalID uuid.UUID `json:"principal_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// CustomerProfile is attached 1:1 to a principal with RoleCustomer.
type CustomerProfile struct {
	ID          uuid.UUID `json:"id"`
	PrincipalID uuid.UUID `json:"principal_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Event struct {
	ID          uuid.UUID `json:"id"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	Title       string    `json:"title"`
	Venue       string    `json:"venue"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// TicketPool is a sellable pool of identical tickets for an event.
// Availability is the shared counter the ledger guards: it never goes
// negative, and every committed booking's quantity has been deducted from it.
// Capacity records availability at creation time and is not re-derived when
// the organizer later edits the pool.
type TicketPool struct {
	ID           uuid.UUID `json:"id"`
	EventID      uuid.UUID `json:"event_id"`
	Kind         string    `json:"kind"`
	Price        float64   `json:"price"`
	Capacity     int       `json:"capacity"`
	Availability int       `json:"availability"`
	CreatedAt    time.Time `json:"created_at"`
}

type Booking struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customer_id"`
	PoolID     uuid.UUID `json:"pool_id"`
	EventID    uuid.UUID `json:"event_id"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}
