// Package api implements the Dreamland REST API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dreamland/internal/worldservice"
)

// NewRouter creates a chi router with all API routes mounted. It is meant
// to be mounted under /api. events, if non-nil, is served at GET /events.
func NewRouter(svc *worldservice.Service, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Route("/dreams", func(r chi.Router) {
		r.Get("/", h.ListDreams)
		r.Post("/", h.CreateDream)
		r.Get("/{id}", h.GetDream)
		r.Delete("/{id}", h.DeleteDream)
		r.Post("/{id}/process", h.ProcessDream)
	})

	r.Route("/locations", func(r chi.Router) {
		r.Get("/", h.ListLocations)
		r.Post("/", h.CreateLocation)
		r.Post("/merge", h.MergeLocations)
		r.Get("/{id}", h.GetLocation)
		r.Patch("/{id}", h.UpdateLocation)
		r.Delete("/{id}", h.DeleteLocation)
		r.Get("/{id}/transits", h.LocationTransits)
		r.Get("/{id}/history", h.LocationHistory)
		r.Post("/{id}/split", h.SplitLocation)
	})

	r.Route("/entities", func(r chi.Router) {
		r.Get("/", h.ListEntities)
		r.Post("/", h.CreateEntity)
		r.Get("/{id}", h.GetEntity)
	})

	r.Get("/stats", h.Stats)
	r.Get("/export", h.Export)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
