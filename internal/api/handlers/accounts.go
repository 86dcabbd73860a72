package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/api/middleware"
	"github.com/dvloznov/household-ledger/internal/ledger"
)

// AccountsHandler handles asset-flow accounts and their records.
type AccountsHandler struct {
	ledger LedgerService
	log    zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(l LedgerService, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{ledger: l, log: log}
}

type createAccountRequest struct {
	ledger.AccountInput
	Initial ledger.RecordInput `json:"initial"`
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	accounts, err := h.ledger.ListAccounts(r.Context(), ownerID)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to list accounts")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// GetAccount handles GET /api/accounts/{id}
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	account, err := h.ledger.GetAccount(r.Context(), ownerID, id)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to get account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

// CreateAccount handles POST /api/accounts. The body carries the account
// fields and the initial deposit under "initial".
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req createAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := h.ledger.CreateAccount(r.Context(), ownerID, req.AccountInput, req.Initial)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to create account")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, account)
}

// UpdateAccount handles PUT /api/accounts/{id}
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ledger.AccountUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := h.ledger.UpdateAccount(r.Context(), ownerID, id, req)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to update account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	removed, err := h.ledger.DeleteAccount(r.Context(), ownerID, id)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to delete account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"removedTransactions": removed})
}

// AddRecord handles POST /api/accounts/{id}/records
func (h *AccountsHandler) AddRecord(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ledger.RecordInput
	if !decodeBody(w, r, &req) {
		return
	}
	record, err := h.ledger.AddRecord(r.Context(), ownerID, id, req)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to add record")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, record)
}

// UpdateRecord handles PUT /api/accounts/{id}/records/{recordId}
func (h *AccountsHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "recordId")
	if !ok {
		return
	}
	var req ledger.RecordInput
	if !decodeBody(w, r, &req) {
		return
	}
	record, err := h.ledger.UpdateRecord(r.Context(), ownerID, id, recordID, req)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to update record")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, record)
}

// DeleteRecord handles DELETE /api/accounts/{id}/records/{recordId}
func (h *AccountsHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "recordId")
	if !ok {
		return
	}
	if err := h.ledger.DeleteRecord(r.Context(), ownerID, id, recordID); err != nil {
		writeLedgerError(w, h.log, err, "Failed to delete record")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
