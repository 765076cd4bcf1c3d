package domain_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/ledgerline/event-ticketing/internal/domain"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"organizer", "customer"} {
		role, err := domain.ParseRole(s)
		if err != nil {
			t.Errorf("ParseRole(%q): %v", s, err)
		}
		if string(role) != s {
			t.Errorf("ParseRole(%q) = %q", s, role)
		}
	}

	for _, s := range []string{"", "admin", "Organizer", "CUSTOMER"} {
		if _, err := domain.ParseRole(s); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("ParseRole(%q): expected ErrInvalidInput, got %v", s, err)
		}
	}
}

func TestNewTicketPool_SeedsAvailability(t *testing.T) {
	pool := domain.NewTicketPool(uuid.New(), "vip", 99.50, 25)
	if pool.Availability != 25 || pool.Capacity != 25 {
		t.Errorf("expected availability and capacity 25, got %d/%d", pool.Availability, pool.Capacity)
	}
}
