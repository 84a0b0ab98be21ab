// Package api provides the HTTP server for the credit ledger.
// The payment-settlement layer posts deposits here after confirming funds
// off-band; metered endpoint handlers post debits before performing a paid
// operation and translate an insufficient-funds failure into 402.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webintel-network/webledger/internal/domain"
	"github.com/webintel-network/webledger/internal/ledger"
)

// Server is the webledger HTTP API server.
type Server struct {
	ledger         *ledger.Ledger
	metricsEnabled bool
}

// NewServer creates a new API server around the given ledger.
func NewServer(l *ledger.Ledger) *Server {
	return &Server{ledger: l}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/credits", func(r chi.Router) {
		r.Post("/deposit", s.handleDeposit)
		r.Post("/debit", s.handleDebit)
		r.Get("/{wallet}", s.handleGetAccount)
		r.Get("/{wallet}/transactions", s.handleHistory)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeLedgerError maps a ledger failure onto the HTTP surface.
// InsufficientFunds becomes 402 so upstream handlers can surface a
// payment-required response; StorageUnavailable becomes 503 (retryable).
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidWallet),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrMissingTxID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, domain.ErrLedgerClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
