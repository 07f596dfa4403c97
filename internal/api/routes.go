// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koski/dealsearch/internal/api/middleware"
	"github.com/koski/dealsearch/internal/config"
)

// Routes builds the public HTTP handler: probes, the catalog surface,
// and the operational /api group behind token auth where it mutates.
func (s *Server) Routes() http.Handler {
	cfg := s.config()

	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService(cfg),
		EnableLogging:         true,
		RateLimitPerMinute:    cfg.RateLimit,
	})

	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}

	r.Get("/sales", s.handleSales)
	r.Post("/query", s.handleQuery)

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Get("/openapi.yaml", s.handleOpenAPI)
		api.With(s.requireToken, middleware.RefreshRateLimit()).
			Post("/refresh", s.handleRefresh)
	})

	return r
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.TracingEnabled {
		return ""
	}
	return "dealsearch"
}
