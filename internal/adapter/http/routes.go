package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Optimization
		r.Post("/optimize", h.Optimize)
		r.Post("/analyze", h.Analyze)

		// Learning loop
		r.Post("/feedback", h.RecordFeedback)

		// History
		r.Get("/history", h.History)
		r.Get("/history/{id}", h.GetResult)
	})
}
