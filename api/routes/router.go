package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heuristic-logix/backoffice/api/controllers"
	"github.com/heuristic-logix/backoffice/api/middleware"
	"github.com/heuristic-logix/backoffice/internal/conduces"
	"github.com/heuristic-logix/backoffice/pkg/config"
	"github.com/heuristic-logix/backoffice/pkg/logger"
	"github.com/heuristic-logix/backoffice/pkg/outbox"
)

// Deps carries everything the HTTP surface needs. Optional dependencies
// (redis, sink) may be nil; readiness reports them as skipped.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Conduces   conduces.Service
	OutboxRepo *outbox.Repository
	Registry   *prometheus.Registry
	DB         controllers.Pinger
	Redis      controllers.Pinger
	Sink       controllers.Pinger
}

func New(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/health/live", controllers.HealthLive(deps.Config))
	r.Get("/health/ready", controllers.HealthReady(deps.Logger,
		controllers.NamedPinger{Name: "db", Pinger: deps.DB},
		controllers.NamedPinger{Name: "redis", Pinger: deps.Redis},
		controllers.NamedPinger{Name: "sink", Pinger: deps.Sink},
	))

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/conduces", func(r chi.Router) {
			r.Post("/", controllers.CreateConduce(deps.Conduces, deps.Logger))
			r.Get("/", controllers.ListConduces(deps.Conduces, deps.Logger))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.GetConduce(deps.Conduces, deps.Logger))
				r.Post("/assign-truck", controllers.AssignTruck(deps.Conduces, deps.Logger))
				r.Post("/dispatch", controllers.DispatchConduce(deps.Conduces, deps.Logger))
				r.Post("/deliver", controllers.DeliverConduce(deps.Conduces, deps.Logger))
			})
		})

		r.Route("/outbox", func(r chi.Router) {
			r.Get("/events", controllers.ListOutboxEvents(deps.OutboxRepo, deps.Logger))
			r.Get("/events/{id}", controllers.GetOutboxEvent(deps.OutboxRepo, deps.Logger))
			r.Get("/stats", controllers.OutboxStats(deps.OutboxRepo, deps.Logger))
		})
	})

	return r
}
