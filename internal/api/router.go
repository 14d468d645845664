package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/coursegrab/internal/api/handler"
	mw "github.com/iconidentify/coursegrab/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured. An empty
// apiKey leaves the API unauthenticated.
func NewRouter(
	runHandler *handler.RunHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// No request timeout here: a run lasts as long as the course takes.
	r.Route("/api/v1", func(r chi.Router) {
		if apiKey != "" {
			r.Use(mw.APIKeyAuth(apiKey))
		}

		r.Get("/stats", healthHandler.Stats)

		r.Post("/runs", runHandler.Create)
		r.Get("/runs", runHandler.List)
		r.Get("/runs/{runID}", runHandler.Get)
	})

	return r
}
