package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/api/middleware"
	"github.com/dvloznov/household-ledger/internal/domain"
	"github.com/dvloznov/household-ledger/internal/ledger"
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	ledger LedgerService
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(l LedgerService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{ledger: l, log: log}
}

// ListTransactions handles GET /api/transactions?from=&to=&type=&category_id=
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	filter := ledger.TransactionFilter{
		From: from,
		To:   to,
		Kind: domain.TransactionKind(r.URL.Query().Get("type")),
	}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid category_id")
			return
		}
		filter.CategoryID = id
	}

	transactions, err := h.ledger.ListTransactions(r.Context(), ownerID, filter)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to list transactions")
		return
	}
	// Array body, as the sync client expects.
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tx, err := h.ledger.GetTransaction(r.Context(), ownerID, id)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req ledger.TransactionInput
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := h.ledger.CreateTransaction(r.Context(), ownerID, req)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to create transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ledger.TransactionInput
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := h.ledger.UpdateTransaction(r.Context(), ownerID, id, req)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.ledger.DeleteTransaction(r.Context(), ownerID, id); err != nil {
		writeLedgerError(w, h.log, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SummaryHandler reports period totals.
type SummaryHandler struct {
	ledger LedgerService
	log    zerolog.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(l LedgerService, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{ledger: l, log: log}
}

// GetSummary handles GET /api/summary?from=&to=
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	summary, err := h.ledger.Summarize(r.Context(), ownerID, from, to)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to summarize")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}
