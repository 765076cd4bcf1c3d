package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ledgerline/event-ticketing/internal/rolegate"
)

const tokenTTL = 24 * time.Hour

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.gate.Register(r.Context(), rolegate.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         account.Principal.ID,
		"email":      account.Principal.Email,
		"name":       account.Principal.Name,
		"role":       account.Principal.Role,
		"profile_id": account.ProfileID,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.gate.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  p.ID.String(),
		"role": string(p.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	})
	signed, err := tok.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": signed})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	principalID, _ := principalFromContext(r.Context())
	p, err := h.repo.PrincipalByID(r.Context(), principalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    p.ID,
		"email": p.Email,
		"name":  p.Name,
		"role":  p.Role,
	})
}

// UpdateMe accepts name and password changes. A role field in the payload,
// whatever its value, is rejected: roles are fixed at registration.
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name"`
		Password *string `json:"password"`
		Role     *string `json:"role"`
		Email    *string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email != nil {
		writeError(w, http.StatusBadRequest, "email cannot be updated")
		return
	}

	in := rolegate.UpdatePrincipalInput{RoleProvided: req.Role != nil}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Password != nil {
		in.Password = *req.Password
	}

	principalID, _ := principalFromContext(r.Context())
	p, err := h.gate.UpdatePrincipal(r.Context(), principalID, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    p.ID,
		"email": p.Email,
		"name":  p.Name,
		"role":  p.Role,
	})
}
