package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/finsight/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Dependencies, version string) *Server {
	handler := NewHandler(deps, version)
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

	// Authentication
	router.Post("/auth/register", handler.Register)
	router.Post("/auth/login", handler.Login)

	router.Group(func(r chi.Router) {
		if deps.AuthRequired {
			r.Use(AuthMiddleware(deps.Auth))
		}

		// Transactions
		r.Post("/transactions", handler.CreateTransaction)
		r.Get("/transactions", handler.SearchTransactions)
		r.Get("/transactions/user/{userId}", handler.ListUserTransactions)
		r.Get("/transactions/fraud/{userId}", handler.ListFraudulentTransactions)

		// Dashboard
		r.Get("/dashboard/summary", handler.DashboardSummary)

		// Fraud alerts
		r.Get("/fraud/alerts", handler.ListAlerts)
		r.Put("/fraud/alerts/{id}/resolve", handler.ResolveAlert)

		// Subscriptions
		r.Post("/subscriptions/detect", handler.DetectSubscriptions)
		r.Get("/subscriptions", handler.ListSubscriptions)
		r.Get("/subscriptions/due-soon", handler.DueSoonSubscriptions)
		r.Put("/subscriptions/{id}/ignore", handler.IgnoreSubscription)

		// Audit trail and rule inspection
		r.Get("/audit", handler.ListAudit)
		r.Get("/rules", handler.ListRules)
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
