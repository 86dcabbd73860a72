package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/api/middleware"
	"github.com/dvloznov/household-ledger/internal/domain"
)

// UsersHandler manages owner partitions.
type UsersHandler struct {
	ledger LedgerService
	log    zerolog.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(l LedgerService, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{ledger: l, log: log}
}

// CreateUser handles POST /api/users
func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.ledger.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to create user")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, user)
}

// ListUsers handles GET /api/users. Only the acting owner is listed.
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	user, err := h.ledger.GetUser(r.Context(), ownerID)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to list users")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": []domain.User{user},
		"count": 1,
	})
}

// GetUser handles GET /api/users/{id}. Users can only read themselves.
func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if id != ownerID {
		middleware.WriteError(w, http.StatusForbidden, "Cannot read another user")
		return
	}
	user, err := h.ledger.GetUser(r.Context(), id)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to get user")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/{id}. Only the user itself may delete
// its partition.
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if id != ownerID {
		middleware.WriteError(w, http.StatusForbidden, "Cannot delete another user")
		return
	}
	if err := h.ledger.DeleteUser(r.Context(), id); err != nil {
		writeLedgerError(w, h.log, err, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
