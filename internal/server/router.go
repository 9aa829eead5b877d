// Package server wires the catalog HTTP API.
package server

import (
	"net/http"

	apierrors "github.com/maruel/bgmarchive/internal/errors"
	"github.com/maruel/bgmarchive/internal/server/handlers"
	"github.com/maruel/bgmarchive/internal/server/ratelimit"
)

// NewRouter creates and configures the HTTP router. A nil limiter disables
// rate limiting.
func NewRouter(catalog handlers.Catalog, limiter *ratelimit.Limiter) http.Handler {
	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(catalog)
	catalogHandler := handlers.NewCatalogHandler(catalog)

	mux.Handle("GET /api/health", Wrap(healthHandler.Health))
	mux.Handle("GET /api/status", Wrap(catalogHandler.Status))

	mux.Handle("GET /api/subjects/{id}", Wrap(catalogHandler.GetSubject))
	mux.Handle("GET /api/subjects/{id}/episodes", Wrap(catalogHandler.ListEpisodes))
	mux.Handle("GET /api/subjects/{id}/persons", Wrap(catalogHandler.ListPersons))
	mux.Handle("GET /api/subjects/{id}/characters", Wrap(catalogHandler.ListCharacters))
	mux.Handle("GET /api/subjects/{id}/related", Wrap(catalogHandler.ListRelated))

	mux.Handle("GET /api/episodes/{id}", Wrap(catalogHandler.GetEpisode))
	mux.Handle("GET /api/persons/{id}", Wrap(catalogHandler.GetPerson))
	mux.Handle("GET /api/characters/{id}", Wrap(catalogHandler.GetCharacter))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, apierrors.NotFound("route"))
	})

	reject := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, apierrors.RateLimited())
	})
	return ratelimit.Middleware(limiter, reject)(mux)
}
