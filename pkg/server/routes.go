package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handler returns the router with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog(s.deps.Logger))
	r.Use(recoverer(s.deps.Logger))
	if len(s.cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader, TenantHeader},
			ExposedHeaders: []string{RequestIDHeader, "Retry-After"},
			MaxAge:         s.cfg.CORS.MaxAge,
		}))
	}

	r.Get("/health/live", s.deps.Health.LivenessHandler())
	r.Get("/health/ready", s.deps.Health.ReadinessHandler())
	r.Get("/version", healthVersion(s.deps))
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.deps.MetricsPath, s.deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/route", s.handleRoute)
		r.Get("/providers", s.handleProviders)
		r.Get("/active", s.handleActive)
		r.Get("/stats", s.handleStats)
		r.Get("/alerts", s.handleAlerts)

		r.Route("/tenants/{tenant}", func(r chi.Router) {
			r.Get("/usage", s.handleTenantUsage)
			r.Get("/history", s.handleTenantHistory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errorDetail{Type: errorTypeNotFound, Message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errorDetail{
			Type:    errorTypeInvalidRequest,
			Message: r.Method + " not allowed on " + r.URL.Path,
		})
	})

	return r
}
