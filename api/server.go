/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, echoed in error bodies
  2. RequestLogger: zap request log (method, path, status, duration)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests from the mobile and web clients

ROUTE GROUPS:
  /api/action/*         Action submission
  /api/inventory/*      Item listing
  /api/history/*        History query and export
  /api/notifications/*  Alert log
  /api/admin/*          Expiry sweep
  /api/scenarios/*      Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins denies every cross-origin request; go-chi/cors alone would
// treat it as "allow all".
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	corsOpts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}
	if len(allowedOrigins) == 0 {
		corsOpts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOpts))

	r.Route("/api", func(r chi.Router) {
		r.Post("/action/log", h.LogAction)

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.ListInventory)
			r.Get("/{itemCode}", h.GetItem)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.ListHistory)
			r.Get("/export", h.ExportHistory)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.UnreadCount)
			r.Post("/read/{id}", h.AcknowledgeNotification)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/expiry-sweep", h.TriggerExpirySweep)
			r.Get("/sweep-runs", h.ListSweepRuns)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/healthz", h.Health)

	return r
}
