package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/clipbatch/internal/api/handler"
	mw "github.com/iconidentify/clipbatch/internal/api/middleware"
)

// requestTimeout bounds every route except the batch routes, which run
// for as long as their downloads take.
const requestTimeout = time.Minute

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Health  *handler.HealthHandler
	UI      *handler.UIHandler
	Links   *handler.LinksHandler
	Batch   *handler.BatchHandler
	History *handler.HistoryHandler
	Files   *handler.FilesHandler
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, apiKey string, sessionTTL time.Duration) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)

	// Web UI (no auth - the page sends the API key itself)
	r.Get("/", h.UI.Index)

	// API v1 (session + optional API key)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))
		r.Use(mw.Session(sessionTTL))

		// Batches stay open while their downloads run.
		r.Post("/batches", h.Batch.Start)
		r.Get("/batches/stream", h.Batch.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/stats", h.Health.Stats)

			r.Post("/links", h.Links.Upload)
			r.Get("/links", h.Links.List)

			r.Get("/downloads", h.History.List)
			r.Delete("/downloads", h.History.Clear)

			r.Get("/files", h.Files.List)
		})

		// File transfers can outlast the request timeout.
		r.Get("/files/{filename}", h.Files.Serve)
	})

	return r
}
