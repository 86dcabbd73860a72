package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/api/middleware"
	"github.com/dvloznov/household-ledger/internal/ledger"
)

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	ledger LedgerService
	log    zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(l LedgerService, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{ledger: l, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	categories, err := h.ledger.ListCategories(r.Context(), ownerID)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to list categories")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req ledger.CategoryInput
	if !decodeBody(w, r, &req) {
		return
	}
	category, err := h.ledger.CreateCategory(r.Context(), ownerID, req)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to create category")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, category)
}

// UpdateCategory handles PUT /api/categories/{id}
func (h *CategoriesHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ledger.CategoryInput
	if !decodeBody(w, r, &req) {
		return
	}
	category, err := h.ledger.UpdateCategory(r.Context(), ownerID, id, req)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to update category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	removed, err := h.ledger.DeleteCategory(r.Context(), ownerID, id)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to delete category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"removedTransactions": removed})
}
