package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ledgerline/event-ticketing/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps ledger/gate errors to transport status codes.
// InsufficientAvailability is a business rejection the caller must change the
// request for; serialization conflicts are transient and marked retryable.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrRoleMismatch),
		errors.Is(err, domain.ErrRoleImmutable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientAvailability):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSerializationFailure), errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]interface{}{"error": "conflict, try again", "retryable": true})
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeMaskedError is writeDomainError for update/delete paths, where a
// Forbidden result must read as not found so resource existence does not
// leak to non-owners.
func writeMaskedError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrForbidden) {
		writeError(w, http.StatusNotFound, domain.ErrNotFound.Error())
		return
	}
	writeDomainError(w, err)
}
