package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/harliandi/go-imgresize/internal/middleware"
)

// RouterConfig holds the limits applied to the resize routes
type RouterConfig struct {
	RateLimiter   *middleware.RateLimiter
	MaxConcurrent int
}

// NewRouter wires the handlers and middleware.
//
// Every route gets request IDs, security headers, logging and panic
// recovery. Only the upload routes are rate and concurrency limited, so
// health checks and scrapes keep working under load.
func NewRouter(h *Handler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Security, middleware.Logger(logger), middleware.Recovery(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})

	r.Get("/health", h.Health)
	r.Get("/presets", h.Presets)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(middleware.RateLimit(cfg.RateLimiter, logger))
		}
		if cfg.MaxConcurrent > 0 {
			r.Use(middleware.ConcurrencyLimit(cfg.MaxConcurrent, logger))
		}

		r.Post("/resize/size", h.ResizeBySize)
		r.Post("/resize/dimensions", h.ResizeByDimensions)
		r.Post("/info", h.Info)
	})

	return r
}
