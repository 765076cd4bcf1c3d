package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledgerline/event-ticketing/internal/adapters/crdb"
	"github.com/ledgerline/event-ticketing/internal/config"
	"github.com/ledgerline/event-ticketing/internal/domain"
	"github.com/ledgerline/event-ticketing/internal/idempotency"
	"github.com/ledgerline/event-ticketing/internal/ledger"
	"github.com/ledgerline/event-ticketing/internal/rolegate"
)

type Handlers struct {
	cfg    *config.Config
	repo   *crdb.Repository
	gate   *rolegate.Gate
	ledger *ledger.Ledger
	idemp  *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, repo *crdb.Repository, gate *rolegate.Gate, ldg *ledger.Ledger, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		cfg:    cfg,
		repo:   repo,
		gate:   gate,
		ledger: ldg,
		idemp:  idemp,
	}
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string    `json:"title"`
		Venue       string    `json:"venue"`
		Description string    `json:"description"`
		StartsAt    time.Time `json:"starts_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	principalID, _ := principalFromContext(r.Context())
	prof, err := h.gate.OrganizerFor(r.Context(), principalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	event := domain.NewEvent(prof.ID, req.Title, req.Venue, req.Description, req.StartsAt)
	if err := h.repo.InsertEvent(r.Context(), event); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.repo.ListEvents(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) MyEvents(w http.ResponseWriter, r *http.Request) {
	principalID, _ := principalFromContext(r.Context())
	prof, err := h.gate.OrganizerFor(r.Context(), principalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	events, err := h.repo.EventsByOrganizer(r.Context(), prof.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	event, err := h.repo.EventByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pools, err := h.repo.PoolsByEvent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"event": event, "pools": pools})
}

func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	principalID, _ := principalFromContext(r.Context())
	event, err := h.gate.AuthorizeEventWrite(r.Context(), principalID, id)
	if err != nil {
		writeMaskedError(w, err)
		return
	}

	var req struct {
		Title       *string    `json:"title"`
		Venue       *string    `json:"venue"`
		Description *string    `json:"description"`
		StartsAt    *time.Time `json:"starts_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Venue != nil {
		event.Venue = *req.Venue
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.StartsAt != nil {
		event.StartsAt = *req.StartsAt
	}

	if err := h.repo.UpdateEvent(r.Context(), *event); err != nil {
		writeMaskedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	principalID, _ := principalFromContext(r.Context())
	if _, err := h.gate.AuthorizeEventWrite(r.Context(), principalID, id); err != nil {
		writeMaskedError(w, err)
		return
	}
	if err := h.repo.DeleteEvent(r.Context(), id); err != nil {
		writeMaskedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePool creates a ticket pool under an event. The event is known to
// exist here, so a non-owner gets an explicit 403 rather than a masked 404.
func (h *Handlers) CreatePool(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	principalID, _ := principalFromContext(r.Context())
	if _, err := h.gate.AuthorizeEventWrite(r.Context(), principalID, eventID); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Kind     string  `json:"kind"`
		Price    float64 `json:"price"`
		Capacity int     `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Capacity < 0 {
		writeError(w, http.StatusBadRequest, "capacity must not be negative")
		return
	}

	pool := domain.NewTicketPool(eventID, req.Kind, req.Price, req.Capacity)
	if err := h.repo.InsertPool(r.Context(), pool); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pool)
}

func (h *Handlers) ListPools(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	pools, err := h.repo.PoolsByEvent(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

func (h *Handlers) UpdatePool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	principalID, _ := principalFromContext(r.Context())
	pool, err := h.gate.AuthorizePoolWrite(r.Context(), principalID, id)
	if err != nil {
		writeMaskedError(w, err)
		return
	}

	var req struct {
		Kind         *string  `json:"kind"`
		Price        *float64 `json:"price"`
		Availability *int     `json:"availability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, price, availability := pool.Kind, pool.Price, pool.Availability
	if req.Kind != nil {
		kind = *req.Kind
	}
	if req.Price != nil {
		price = *req.Price
	}
	if req.Availability != nil {
		availability = *req.Availability
	}

	updated, err := h.repo.UpdatePool(r.Context(), id, kind, price, availability)
	if err != nil {
		writeMaskedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	poolID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	principalID, _ := principalFromContext(r.Context())
	customer, err := h.gate.CustomerFor(r.Context(), principalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	booking, err := h.ledger.CreateBooking(r.Context(), poolID, customer.ID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data, _ := json.Marshal(booking)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	principalID, _ := principalFromContext(r.Context())
	customer, err := h.gate.CustomerFor(r.Context(), principalID)
	if err != nil {
		writeMaskedError(w, err)
		return
	}

	booking, err := h.ledger.UpdateBooking(r.Context(), id, customer.ID, req.Quantity)
	if err != nil {
		writeMaskedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	principalID, _ := principalFromContext(r.Context())
	customer, err := h.gate.CustomerFor(r.Context(), principalID)
	if err != nil {
		writeMaskedError(w, err)
		return
	}
	if err := h.ledger.CancelBooking(r.Context(), id, customer.ID); err != nil {
		writeMaskedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MyBookings(w http.ResponseWriter, r *http.Request) {
	principalID, _ := principalFromContext(r.Context())
	customer, err := h.gate.CustomerFor(r.Context(), principalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	bookings, err := h.repo.BookingsByCustomer(r.Context(), customer.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handlers) EventBookings(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	principalID, _ := principalFromContext(r.Context())
	if _, err := h.gate.AuthorizeEventWrite(r.Context(), principalID, eventID); err != nil {
		writeMaskedError(w, err)
		return
	}
	bookings, err := h.repo.BookingsByEvent(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
