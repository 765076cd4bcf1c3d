package domain

import (
	"time"

	"github.com/google/uuid"
)

func NewEvent(organizerID uuid.UUID, title, venue, description string, startsAt time.Time) Event {
	return Event{
		ID:          uuid.New(),
		OrganizerID: organizerID,
		Title:       title,
		Venue:       venue,
		Description: description,
		StartsAt:    startsAt,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewTicketPool seeds availability from the initial capacity.
func NewTicketPool(eventID uuid.UUID, kind string, price float64, capacity int) TicketPool {
	return TicketPool{
		ID:           uuid.New(),
		EventID:      eventID,
		Kind:         kind,
		Price:        price,
		Capacity:     capacity,
		Availability: capacity,
		CreatedAt:    time.Now().UTC(),
	}
}
