package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/mesa-backend/api/responses"
	"github.com/angelmondragon/mesa-backend/pkg/capability"
	"github.com/angelmondragon/mesa-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
	"github.com/angelmondragon/mesa-backend/pkg/logger"
)

const (
	actorHeader     = "X-Actor"
	actorRoleHeader = "X-Actor-Role"
)

type contextKey string

const (
	ctxActor     contextKey = "actor"
	ctxActorRole contextKey = "actor_role"
)

func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActor).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// WithActor injects the actor identity, mainly for tests.
func WithActor(ctx context.Context, actor string, role enums.ActorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActor, actor)
	return context.WithValue(ctx, ctxActorRole, role)
}

// Actor resolves the terminal identity from the X-Actor / X-Actor-Role
// headers. Terminals are trusted devices on the restaurant LAN; the headers
// identify who is holding the terminal, not authenticate them.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(actorHeader))
			if actor == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "X-Actor header required"))
				return
			}

			role, err := enums.ParseActorRole(strings.TrimSpace(r.Header.Get(actorRoleHeader)))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid X-Actor-Role header"))
				return
			}

			ctx := WithActor(r.Context(), actor, role)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor)
				ctx = logg.WithActorRole(ctx, string(role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability gates a route on the actor role's grant for the action.
func RequireCapability(action capability.Action, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if !capability.CanPerform(role, action) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed to perform this action").
						WithDetails(map[string]any{"action": string(action), "role": string(role)}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
