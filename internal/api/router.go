/**
 * @description
 * This file sets up the main HTTP router for the ledger-service using the
 * chi library. It defines the public login and health endpoints and groups
 * every account, transfer and statement route behind the session
 * authentication middleware.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The HTTP router.
 * - internal/api: The handlers and middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures the chi router with all service routes.
func NewRouter(handlers *LedgerHandlers, jwtSecret []byte) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Post("/auth/login", handlers.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(jwtSecret))

		r.Post("/auth/pin", handlers.ChangePinHandler)

		r.Get("/accounts", handlers.ListAccountsHandler)
		r.Get("/accounts/{accountType}/balance", handlers.GetBalanceHandler)
		r.Post("/accounts/{accountType}/deposits", handlers.DepositHandler)
		r.Post("/accounts/{accountType}/withdrawals", handlers.WithdrawHandler)

		r.Post("/transfers/internal", handlers.InternalTransferHandler)
		r.Post("/transfers/external", handlers.ExternalTransferHandler)

		r.Get("/transactions", handlers.TransactionHistoryHandler)
		r.Get("/transactions/mini", handlers.MiniStatementHandler)
		r.Get("/pin-activity", handlers.PinActivityHandler)
	})

	return r
}
