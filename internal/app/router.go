package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/signhub/signhub/internal/auth"
	"github.com/signhub/signhub/internal/fonts"
	"github.com/signhub/signhub/internal/groups"
	"github.com/signhub/signhub/internal/observability"
	"github.com/signhub/signhub/internal/permissions"
	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/users"
	"github.com/signhub/signhub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	GroupsHandler      *groups.Handler
	PermissionsHandler *permissions.Handler
	FontsHandler       *fonts.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with signhub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireActor)
		r.Route("/user", func(r chi.Router) {
			if params.PermissionsHandler != nil {
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
				r.With(params.RBACMiddleware.RequireSuperAdmin).Group(params.UsersHandler.MountAdminRoutes)
			}
		})
		if params.GroupsHandler != nil {
			r.Route("/group", params.GroupsHandler.MountRoutes)
		}
		if params.FontsHandler != nil {
			r.With(cacheControl("private, max-age=300")).Route("/fonts", params.FontsHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

// cacheControl sets the Cache-Control header on every response.
func cacheControl(value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}
