// Package api provides the stonekeeper HTTP server: the academy REST API,
// the live ledger SSE feed, and the websocket document feed that remote
// instances subscribe to.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stonekeeper/stonekeeper/internal/app/ledger"
	"github.com/stonekeeper/stonekeeper/internal/domain"
	"github.com/stonekeeper/stonekeeper/internal/infra/docstore"
	"github.com/stonekeeper/stonekeeper/internal/store"
)

// Version is the reported server version.
const Version = "0.1.0"

// Server is the stonekeeper HTTP API server.
type Server struct {
	svc            *ledger.Service
	metricsEnabled bool
	live           *LiveHub       // live ledger SSE feed (nil if not set)
	feed           docstore.Store // backend served on /api/feed (nil if not set)
}

// NewServer creates a new API server on top of the ledger service.
func NewServer(svc *ledger.Service) *Server {
	return &Server{svc: svc}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetLiveHub sets the live ledger SSE hub.
func (s *Server) SetLiveHub(h *LiveHub) { s.live = h }

// LiveHub returns the live ledger hub (for broadcasting events).
func (s *Server) LiveHub() *LiveHub { return s.live }

// SetFeedBackend exposes the given document store on /api/feed so remote
// instances can subscribe to it.
func (s *Server) SetFeedBackend(b docstore.Store) { s.feed = b }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Route("/students", func(r chi.Router) {
			r.Get("/", s.handleListStudents)
			r.Post("/", s.handleAddStudent)
			r.Put("/{id}", s.handleUpdateStudent)
			r.Patch("/{id}", s.handleUpdateStudent)
			r.Delete("/{id}", s.handleDeleteStudent)
			r.Get("/{id}/transactions", s.handleStudentTransactions)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCredit)
			r.Post("/{id}/cancel", s.handleCancel)
			r.Delete("/{id}", s.handleDelete)
		})

		r.Post("/transfers", s.handleTransfer)
		r.Post("/purchases", s.handlePurchase)
		r.Get("/missions", s.handleListMissions)
		r.Post("/missions/{id}/complete", s.handleCompleteMission)
		r.Post("/gacha/draw", s.handleDrawGacha)

		r.Get("/matches", s.handleListMatches)
		r.Post("/matches", s.handleRecordMatch)
		r.Route("/tournament", func(r chi.Router) {
			r.Post("/rounds", s.handleNextRound)
			r.Post("/rounds/{round}/boards/{board}/result", s.handleReportPairing)
		})

		r.Get("/leaderboard", s.handleLeaderboard)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Live ledger SSE feed
	if s.live != nil {
		r.Get("/api/ledger/live", s.live.HandleLedgerSSE)
	}

	// Document change feed for remote instances
	if s.feed != nil {
		r.Get("/api/feed", s.handleFeed)
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

// writeDomainError maps a service error onto an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStudentNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrMissionNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTransactionCancelled),
		errors.Is(err, domain.ErrStudentExists),
		errors.Is(err, domain.ErrInsufficientStones),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrNoTickets),
		errors.Is(err, domain.ErrNoPrizes):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrCouponInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotLive):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
