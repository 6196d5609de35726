package router

import (
	"boardmeta-api/internal/handler"
	"boardmeta-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler           *handler.Handler
	SearchHandler     *handler.SearchHandler
	EnrichmentHandler *handler.EnrichmentHandler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.SearchHandler != nil {
			r.Get("/games/search", cfg.SearchHandler.Search)
		}

		if cfg.EnrichmentHandler != nil {
			r.Post("/games/{id}/enrich", cfg.EnrichmentHandler.EnrichGame)
			r.Route("/enrichment", func(r chi.Router) {
				r.Post("/start", cfg.EnrichmentHandler.StartBulk)
				r.Post("/stop", cfg.EnrichmentHandler.StopBulk)
				r.Get("/status", cfg.EnrichmentHandler.BulkStatus)
			})
		}
	})

	return r
}
