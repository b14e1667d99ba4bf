package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/imgclean/internal/storage"
)

// NewRouter creates a chi router with every browser route mounted.
// images may be nil when no image has been extracted yet.
func NewRouter(svc Service, images storage.Provider) chi.Router {
	h := NewHandler(svc, images)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}/images", h.RunImages)
		r.Get("/backups", h.ListBackups)
	})

	r.Get("/images/*", h.ServeImage)

	return r
}
