// Package handlers exposes the ledger over JSON HTTP for the remote-sync
// client. Every handler acts for the owner resolved by middleware.Owner.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/api/middleware"
	"github.com/dvloznov/household-ledger/internal/domain"
	"github.com/dvloznov/household-ledger/internal/ledger"
)

// LedgerService is the ledger surface the handlers call.
type LedgerService interface {
	CreateUser(ctx context.Context, name, email string) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	DeleteUser(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, ownerID int64, in ledger.CategoryInput) (domain.Category, error)
	UpdateCategory(ctx context.Context, ownerID, categoryID int64, in ledger.CategoryInput) (domain.Category, error)
	DeleteCategory(ctx context.Context, ownerID, categoryID int64) (int, error)
	ListCategories(ctx context.Context, ownerID int64) ([]domain.Category, error)

	CreateTransaction(ctx context.Context, ownerID int64, in ledger.TransactionInput) (domain.Transaction, error)
	UpdateTransaction(ctx context.Context, ownerID, txID int64, in ledger.TransactionInput) (domain.Transaction, error)
	DeleteTransaction(ctx context.Context, ownerID, txID int64) error
	GetTransaction(ctx context.Context, ownerID, txID int64) (domain.Transaction, error)
	ListTransactions(ctx context.Context, ownerID int64, filter ledger.TransactionFilter) ([]domain.Transaction, error)

	CreateAccount(ctx context.Context, ownerID int64, in ledger.AccountInput, initial ledger.RecordInput) (domain.AssetFlowAccount, error)
	UpdateAccount(ctx context.Context, ownerID, accountID int64, upd ledger.AccountUpdate) (domain.AssetFlowAccount, error)
	DeleteAccount(ctx context.Context, ownerID, accountID int64) (int, error)
	GetAccount(ctx context.Context, ownerID, accountID int64) (domain.AssetFlowAccount, error)
	ListAccounts(ctx context.Context, ownerID int64) ([]domain.AssetFlowAccount, error)

	AddRecord(ctx context.Context, ownerID, accountID int64, in ledger.RecordInput) (domain.AssetFlowRecord, error)
	UpdateRecord(ctx context.Context, ownerID, accountID, recordID int64, in ledger.RecordInput) (domain.AssetFlowRecord, error)
	DeleteRecord(ctx context.Context, ownerID, accountID, recordID int64) error

	Summarize(ctx context.Context, ownerID int64, from, to time.Time) (ledger.Summary, error)
}

var _ LedgerService = (*ledger.Ledger)(nil)

// writeLedgerError maps ledger errors onto status codes. Unexpected errors
// are logged and reported as 500 with msg.
func writeLedgerError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	switch {
	case domain.IsNotFound(err):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case domain.IsConflict(err):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case domain.IsInvalid(err):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}

// requireOwner returns the acting owner or writes 401.
func requireOwner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, middleware.OwnerHeader+" header is required")
		return 0, false
	}
	return ownerID, true
}

// pathID parses the named path value as a positive id or writes 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parseDate accepts either a date (2006-01-02) or an RFC 3339 timestamp.
// An empty value is the zero time.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// dateRange reads the from/to query parameters.
func dateRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	query := r.URL.Query()
	from, err := parseDate(query.Get("from"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid from date")
		return time.Time{}, time.Time{}, false
	}
	to, err = parseDate(query.Get("to"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid to date")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
