// Package api provides the HTTP API for Midway.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/meetmidway/midway/internal/api/handler"
	"github.com/meetmidway/midway/internal/api/middleware"
	"github.com/meetmidway/midway/internal/api/response"
	"github.com/meetmidway/midway/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// Searcher serves the midpoint and venue search endpoints.
	Searcher handler.Searcher
	// Registry reports collaborator circuit state on /v1/ops/status (optional).
	Registry *resilience.Registry
	// ReadinessChecks are run by /v1/ops/ready and /v1/ops/status.
	ReadinessChecks []handler.HealthCheck

	// SearchRateLimit is the per-IP limit on search endpoints.
	// Zero value uses middleware.ExpensiveRateLimit.
	SearchRateLimit middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "midway-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind the load balancer
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no route matches "+req.URL.Path)
	})

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.ReadinessChecks...)
	metadataHandler := handler.NewMetadataHandler()
	searchHandler := handler.NewSearchHandler(cfg.Searcher, cfg.Logger)

	// Create rate limit middleware for different endpoint categories
	searchLimit := cfg.SearchRateLimit
	if searchLimit.RequestLimit <= 0 {
		searchLimit = middleware.ExpensiveRateLimit
	}
	searchRateLimit := middleware.RateLimitByIP(searchLimit)                    // fans out to map providers
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Metadata endpoints (public) - standard rate limiting
		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/enums", metadataHandler.GetEnums)
		})

		// Search endpoints - expensive compute, strict rate limiting
		r.Group(func(r chi.Router) {
			r.Use(searchRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/midpoint", searchHandler.ComputeMidpoint)
			r.Post("/venues:search", searchHandler.SearchVenues)
		})
	})

	return r
}
