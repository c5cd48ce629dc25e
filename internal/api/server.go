package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-intel/kite/internal/domain"
	"github.com/opensource-intel/kite/internal/reports"
	"github.com/opensource-intel/kite/internal/rules"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, svc *reports.Service, repo domain.Repository, cache domain.Cache, engine *rules.Engine, version string) *Server {
	handler := NewHandler(svc, repo, cache, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(MetricsMiddleware)      // Prometheus request metrics
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Operational endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		// Report submission and retrieval
		r.Post("/reports", handler.SubmitReport)
		r.Get("/reports", handler.ListReports)
		r.Get("/reports/{id:[0-9]+}", handler.GetReport)
		r.Get("/reports/lookup/*", handler.Lookup)

		// Standalone AI analysis
		r.Post("/analysis", handler.Analyze)

		// Dashboard
		r.Get("/dashboard/stats", handler.DashboardStats)

		// Watch rule management
		r.Get("/watchrules", handler.ListWatchRules)
		r.Get("/watchrules/{id}", handler.GetWatchRule)
		r.Post("/watchrules", handler.CreateWatchRule)
		r.Delete("/watchrules/{id}", handler.DeleteWatchRule)
		r.Post("/watchrules/reload", handler.ReloadWatchRules)
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
