package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/household-ledger/internal/api/middleware"
	"github.com/dvloznov/household-ledger/internal/jobs"
)

// NewRouter wires every endpoint and the middleware chain.
func NewRouter(l LedgerService, publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) http.Handler {
	users := NewUsersHandler(l, log)
	categories := NewCategoriesHandler(l, log)
	transactions := NewTransactionsHandler(l, log)
	accounts := NewAccountsHandler(l, log)
	summary := NewSummaryHandler(l, log)
	jobsHandler := NewJobsHandler(publisher, store, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/users", users.ListUsers)
	mux.HandleFunc("POST /api/users", users.CreateUser)
	mux.HandleFunc("GET /api/users/{id}", users.GetUser)
	mux.HandleFunc("DELETE /api/users/{id}", users.DeleteUser)

	mux.HandleFunc("GET /api/categories", categories.ListCategories)
	mux.HandleFunc("POST /api/categories", categories.CreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", categories.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", categories.DeleteCategory)

	mux.HandleFunc("GET /api/transactions", transactions.ListTransactions)
	mux.HandleFunc("POST /api/transactions", transactions.CreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", transactions.GetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", transactions.UpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", transactions.DeleteTransaction)

	mux.HandleFunc("GET /api/accounts", accounts.ListAccounts)
	mux.HandleFunc("POST /api/accounts", accounts.CreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", accounts.GetAccount)
	mux.HandleFunc("PUT /api/accounts/{id}", accounts.UpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", accounts.DeleteAccount)
	mux.HandleFunc("POST /api/accounts/{id}/records", accounts.AddRecord)
	mux.HandleFunc("PUT /api/accounts/{id}/records/{recordId}", accounts.UpdateRecord)
	mux.HandleFunc("DELETE /api/accounts/{id}/records/{recordId}", accounts.DeleteRecord)

	mux.HandleFunc("GET /api/summary", summary.GetSummary)

	mux.HandleFunc("POST /api/reconcile", jobsHandler.EnqueueReconcile)
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobsHandler.GetJob)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.RequestID(
		middleware.Recovery(log)(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Owner(mux),
				),
			),
		),
	)
}
