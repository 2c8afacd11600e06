package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairwaylabs/fairway-pos-backend/api/controllers"
	"github.com/fairwaylabs/fairway-pos-backend/api/middleware"
	"github.com/fairwaylabs/fairway-pos-backend/internal/ledger"
	"github.com/fairwaylabs/fairway-pos-backend/internal/refunds"
	"github.com/fairwaylabs/fairway-pos-backend/internal/voids"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Cfg      *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Registry *prometheus.Registry

	Ledger  ledger.Service
	Refunds refunds.Service
	Voids   voids.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Cfg, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Post("/api/v1/sessions", controllers.OpenRegisterSession(cfg, logg))

	r.Route("/api/v1/transactions", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/", controllers.CreateTransaction(deps.Ledger, logg))
		r.Route("/{transactionID}", func(r chi.Router) {
			r.Get("/", controllers.GetTransaction(deps.Ledger, logg))
			r.Get("/balance", controllers.GetBalance(deps.Ledger, logg))
			r.Post("/payments", controllers.AddPayment(deps.Ledger, logg))
			r.Post("/refunds", controllers.CreateRefund(deps.Refunds, logg))
			r.Post("/void", controllers.VoidTransaction(deps.Voids, logg))
		})
	})

	return r
}
