package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/signhub/signhub/internal/platform/httpx"
	"github.com/signhub/signhub/internal/shared"
)

// Middleware wires actor resolution for HTTP handlers.
type Middleware struct {
	Loader ActorLoader
	Logger *slog.Logger
}

// RequireActor resolves the session user into an Actor and stores it in the request context.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.currentUserID(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Login required")
			return
		}
		actor, err := m.Loader.ActorForUser(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, shared.ErrAccessDenied) && m.Logger != nil {
				m.Logger.Error("rbac load actor", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireSuperAdmin rejects actors that are not super administrators. It must run after RequireActor.
func (m Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || !actor.IsSuperAdmin() {
			httpx.RespondError(w, shared.ErrAccessDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
