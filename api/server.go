/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, carried into logs
  2. RequestLogger: Structured request logging
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the calendar frontend

ROUTE GROUPS:
  /api/meetings/*       Reconciled meetings, assignments
  /api/availability/*   Conflict checks, index refresh
  /api/employees        Directory
  /api/sources/*        Breaker inspection and re-enable
  /metrics              Prometheus
  /health               Liveness

SECURITY:
  Write routes (assignments, refresh, source enable) sit behind RequireAuth,
  which verifies the bearer token with the identity lookup.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/meetingd/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/meeting-engine/meeting"
)

// RouterOptions carries what the router needs beyond the handler.
type RouterOptions struct {
	AllowedOrigins []string
	Identity       meeting.IdentityLookup
	Gatherer       prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	auth := RequireAuth(opts.Identity)

	r.Route("/api", func(r chi.Router) {
		r.Route("/meetings", func(r chi.Router) {
			r.Get("/", h.ListMeetings)
			r.With(auth).Post("/{id}/assignments", h.AssignRole)
		})

		r.Route("/availability", func(r chi.Router) {
			r.Get("/check", h.CheckAvailability)
			r.With(auth).Post("/refresh", h.RefreshAvailability)
		})

		r.Get("/employees", h.ListEmployees)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", h.ListSources)
			r.With(auth).Post("/{source}/enable", h.EnableSource)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})

	return r
}
