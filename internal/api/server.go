package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/engine"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/rules"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, catalog *rules.Catalog, version string) *Server {
	handler := NewHandler(repo, cache, bus, eng, catalog, version)
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

	// Product registration
	router.Post("/products", handler.CreateProduct)
	router.Get("/products/{id}", handler.GetProduct)

	// Evaluation
	router.Post("/evaluate", handler.Evaluate)
	router.Post("/evaluate/batch", handler.EvaluateBatch)
	router.Get("/evaluations/{id}", handler.GetEvaluation)

	// Rule management
	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{id}", handler.GetRule)
	router.Post("/rules", handler.CreateRule)
	router.Delete("/rules/{id}", handler.DeleteRule)
	router.Post("/rules/reload", handler.ReloadRules)

	// Combination and chain management
	router.Get("/combinations", handler.ListCombinations)
	router.Post("/combinations", handler.CreateCombination)
	router.Get("/chains", handler.ListChains)
	router.Post("/chains", handler.CreateChain)

	// Operational endpoints
	router.Get("/suppliers/{id}/flags", handler.GetSupplierFlags)
	router.Get("/stats", handler.Stats)

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
