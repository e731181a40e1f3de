package app

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockflow/stockflow/internal/budget"
	"github.com/stockflow/stockflow/internal/inventory"
	"github.com/stockflow/stockflow/internal/observability"
	"github.com/stockflow/stockflow/internal/platform/httpx"
	"github.com/stockflow/stockflow/internal/shared"
	"github.com/stockflow/stockflow/jobs"
	"github.com/stockflow/stockflow/web"
)

// HealthCheck checks one dependency for /healthz.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	Registry         *inventory.Registry
	InventoryHandler *inventory.Handler
	BudgetHandler    *budget.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	HealthChecks     map[string]HealthCheck
}

// NewRouter constructs the chi.Router with stockflow defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", healthHandler(params.HealthChecks, params.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(SessionMiddleware(params.SessionManager, params.Logger))
		r.Use(CSRFMiddleware(params.CSRFManager, params.Logger))

		r.Get("/session", sessionHandler(params.CSRFManager, params.Logger))
		r.Delete("/session", endSessionHandler(params.SessionManager, params.Registry))

		if params.BudgetHandler != nil {
			r.Route("/budget-requests", params.BudgetHandler.MountRoutes)
		}
		r.Group(func(r chi.Router) {
			r.Use(StoreMiddleware(params.Registry, params.Logger))
			params.InventoryHandler.MountRoutes(r)
		})
	})

	if params.BudgetHandler != nil {
		r.Get("/approval", params.BudgetHandler.HandleDecision)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httpx.JSON(w, status, resp)
	}
}

type sessionResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// sessionHandler hands the client the CSRF token it must echo in the
// X-CSRF-Token header of mutating calls.
func sessionHandler(csrf *shared.CSRFManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := csrf.EnsureToken(shared.SessionFrom(r.Context()))
		if err != nil {
			logger.Error("issue csrf token", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, sessionResponse{CSRFToken: token})
	}
}

// endSessionHandler tears down the session and its inventory store.
func endSessionHandler(manager *shared.SessionManager, registry *inventory.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFrom(r.Context())
		if sess != nil {
			registry.Close(sess.ID)
			manager.Destroy(sess)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
