package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/kitchen/internal/inventory"
	"github.com/odyssey-erp/kitchen/internal/kitchenperm"
	"github.com/odyssey-erp/kitchen/internal/observability"
	"github.com/odyssey-erp/kitchen/internal/platform/httpx"
	"github.com/odyssey-erp/kitchen/internal/procurement"
	"github.com/odyssey-erp/kitchen/internal/rbac"
	"github.com/odyssey-erp/kitchen/internal/shared"
	"github.com/odyssey-erp/kitchen/jobs"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	RBACMiddleware     rbac.Middleware
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	PermissionsHandler *kitchenperm.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	Health             HealthChecker
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		RBAC:    params.RBACMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Health != nil {
			if err := params.Health.Ping(r.Context()); err != nil {
				params.Logger.Warn("health check", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "database unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.ProcurementHandler != nil {
		r.Route("/procurement", params.ProcurementHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/kitchen-permissions", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole(shared.RoleAdmin))
			params.PermissionsHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole(shared.RoleAdmin, shared.RoleKitchen))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
