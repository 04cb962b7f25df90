// Package rbac attaches the authenticated actor to requests and gates routes by role.
// Authentication itself happens upstream; the session gateway forwards the actor
// identity in request headers.
package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/kitchen/internal/platform/httpx"
	"github.com/odyssey-erp/kitchen/internal/shared"
)

// Headers populated by the session gateway.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Middleware wires actor resolution and role checks for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Authenticate stores the forwarded actor in the request context. Requests without
// an actor pass through so public routes keep working; a malformed identity is
// rejected.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			if m.Logger != nil {
				m.Logger.Warn("rbac parse actor id", slog.String("value", raw))
			}
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		actor := shared.Actor{ID: id, Role: shared.ParseRole(r.Header.Get(HeaderActorRole))}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireRole ensures the current actor holds at least one of roles.
func (m Middleware) RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if len(allowed) == 0 || shared.HasRole(actor, allowed...) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Info("rbac role denied", slog.String("actor", actor.String()), slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, shared.ErrForbidden)
		})
	}
}

func normalizeRoles(roles []shared.Role) []shared.Role {
	seen := make(map[shared.Role]struct{}, len(roles))
	out := make([]shared.Role, 0, len(roles))
	for _, r := range roles {
		r = shared.ParseRole(string(r))
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
