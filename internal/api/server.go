package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kestrel-monitoring/kestrel/internal/detection"
	"github.com/kestrel-monitoring/kestrel/internal/domain"
	"github.com/kestrel-monitoring/kestrel/internal/notify"
	"github.com/kestrel-monitoring/kestrel/internal/review"
	"github.com/kestrel-monitoring/kestrel/internal/risk"
	"github.com/kestrel-monitoring/kestrel/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, detector *detection.Service, analyzer *risk.Analyzer, store *notify.Store, fraudRev *review.FraudReviewer, suspectRev *review.SuspiciousReviewer, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, detector, analyzer, store, fraudRev, suspectRev, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes
	router.Route("/api", func(r chi.Router) {
		// Embedded detection backend
		r.Post("/detect-fraud", handler.DetectFraud)
		r.Post("/confirm-transaction", handler.ConfirmTransaction)

		// Transaction dataset
		r.Get("/transactions", handler.ListTransactions)
		r.Get("/transactions/{id}", handler.GetTransaction)
		r.Get("/stats", handler.GetStats)

		// Risk analysis and review
		r.Post("/transactions/{id}/analyze", handler.AnalyzeTransaction)
		r.Post("/transactions/{id}/decision", handler.DecideTransaction)
		r.Post("/transactions/{id}/screen", handler.ScreenTransaction)

		// Fraud notifications
		r.Get("/notifications", handler.ListNotifications)
		r.Post("/notifications/{id}/read", handler.MarkNotificationRead)
		r.Post("/notifications/{id}/review", handler.ReviewNotification)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
