package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/api/handler"
	apimw "github.com/ricirt/feedhub/internal/api/middleware"
	"github.com/ricirt/feedhub/internal/presence"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/service"
	"github.com/ricirt/feedhub/internal/timeline"
)

// Deps is everything the HTTP surface needs from the rest of the process.
type Deps struct {
	Users    *service.UserService
	Posts    *service.PostService
	Comments *service.CommentService
	Feed     *timeline.Aggregator
	Broker   *queue.Broker
	Ready    *queue.ReadyQueue
	Presence *presence.Registry
	// Realtime serves the websocket upgrade on /ws.
	Realtime http.Handler
	Gatherer prometheus.Gatherer
	// Checks back the /ready probe, keyed by service name.
	Checks map[string]handler.Check

	CORSOrigins []string
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)        // X-Correlation-ID inject / echo
	r.Use(apimw.Identity)             // X-User-ID onto the context
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	uh := handler.NewUserHandler(d.Users, logger)
	ph := handler.NewPostHandler(d.Posts, d.Feed, logger)
	ch := handler.NewCommentHandler(d.Comments, logger)
	jh := handler.NewJobHandler(d.Broker)
	mh := handler.NewMetricsHandler(d.Ready, d.Presence)
	hh := handler.NewHealthHandler(d.Checks)

	// --- routes ---
	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	// Identity comes from ?userId= here; browsers cannot set headers on
	// a websocket handshake.
	r.Handle("/ws", d.Realtime)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", uh.Create)
		r.Get("/users", uh.List)
		r.Get("/users/{id}", uh.Get)
		r.Get("/users/{id}/posts", ph.ByAuthor)

		// chi matches the static /posts/mine and /jobs/dead before the
		// {id} patterns, whatever the registration order.
		r.Get("/posts", ph.List)
		r.Get("/posts/{id}", ph.Get)
		r.Get("/posts/{id}/comments", ch.List)

		r.Get("/jobs/dead", jh.DeadLettered)
		r.Get("/jobs/{id}", jh.Get)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireUser)

			r.Get("/timeline", ph.Timeline)
			r.Post("/users/{id}/follow", uh.Follow)
			r.Delete("/users/{id}/follow", uh.Unfollow)

			r.Get("/posts/mine", ph.Mine)
			r.Post("/posts", ph.Create)
			r.Put("/posts/{id}", ph.Update)
			r.Delete("/posts/{id}", ph.Delete)
			r.Post("/posts/{id}/like", ph.Like)
			r.Delete("/posts/{id}/like", ph.Unlike)
			r.Post("/posts/{id}/comments", ch.Create)

			r.Put("/comments/{id}", ch.Update)
			r.Delete("/comments/{id}", ch.Delete)
		})
	})

	return handlers.CORS(
		handlers.AllowedOrigins(d.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", apimw.UserIDHeader, "X-Correlation-ID"}),
		handlers.ExposedHeaders([]string{"X-Correlation-ID"}),
	)(r)
}
