package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the chi router. The health endpoint is always open; the
// other routes require bearer auth when token is non-empty. redis may be
// nil when the position cache lives in memory.
func NewRouter(handlers *Handlers, token string, redis redisPinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/api/v1/health", HealthHandlerFunc(redis, log))

	r.Group(func(r chi.Router) {
		if token != "" {
			r.Use(BearerAuth(token))
		}
		r.Post("/api/v1/search", handlers.Search)
		r.Post("/api/v1/locate", handlers.Locate)
		r.Get("/api/v1/suggest", handlers.Suggest)
		r.Put("/api/v1/unit/{unit}", handlers.SetUnit)
		r.Get("/api/v1/state", handlers.GetState)
		r.Get("/api/v1/state/stream", handlers.StreamState)
		r.Get("/api/v1/view", handlers.GetView)
	})

	return r
}

var _ http.Handler = (*chi.Mux)(nil)
