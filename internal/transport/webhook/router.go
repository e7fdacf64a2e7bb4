package webhook

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the gateway next to a liveness probe.
func NewRouter(h *Handler) http.Handler {
	started := time.Now()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"mode":      "webhook",
			"uptime":    time.Since(started).Round(time.Second).String(),
		})
	})
	r.Post("/webhook", h.ServeHTTP)

	return r
}
