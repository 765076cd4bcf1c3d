package domain

import (
	"time"

	"github.com/google/uuid"
)

func NewBooking(poolID, eventID, customerID uuid.UUID, quantity int) Booking {
	return Booking{
		ID:         uuid.New(),
		CustomerID: customerID,
		PoolID:     poolID,
		EventID:    eventID,
		Quantity:   quantity,
		CreatedAt:  time.Now().UTC(),
	}
}
