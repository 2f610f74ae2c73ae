// Package routes configures the HTTP router and middleware.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/riskfabric/cyberrisk/pkg/config"
	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/telemetry"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/handlers"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/middleware"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/service"
)

// Config holds dependencies for route setup.
type Config struct {
	Config    *config.Config
	Logger    *logger.Logger
	Sync      *service.SyncService
	Dashboard *service.DashboardService
	Health    handlers.HealthHandlerConfig
}

// New creates a chi router with all routes and middleware configured.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	if cfg.Config.Telemetry.Enabled {
		r.Use(telemetry.HTTPMiddleware())
	}
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Config.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Record-Count", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	syncHandler := handlers.NewSyncHandler(cfg.Sync, cfg.Logger)
	dashboardHandler := handlers.NewDashboardHandler(cfg.Dashboard, cfg.Logger)

	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/readyz", healthHandler.Readiness)
	r.Get("/version", healthHandler.Version)

	if cfg.Config.Metrics.Enabled {
		r.Get(cfg.Config.Metrics.Path, healthHandler.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sync", syncHandler.SyncAll)

		r.Route("/organizations/{orgID}", func(r chi.Router) {
			r.Post("/sync", syncHandler.SyncOrganization)
			r.Get("/dashboard/export.csv", dashboardHandler.ExportCSV)
			r.Get("/dashboard/{view}", dashboardHandler.View)
		})
	})

	return r
}
