package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/outbox"
)

type contextKey string

const ctxActorID contextKey = "actor_id"

const actorIDHeader = "X-Actor-Id"

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		return v
	}
	return ""
}

// WithActorID injects the caller identity into the context. The same id is
// recorded on outbox events emitted while serving the request.
func WithActorID(ctx context.Context, actorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return outbox.WithActor(ctx, actorID)
}

// Actor copies the X-Actor-Id header issued by the upstream auth layer into
// the request context. A missing header is not an error.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := strings.TrimSpace(r.Header.Get(actorIDHeader))
			if actorID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithActorID(r.Context(), actorID)
			if logg != nil {
				ctx = logg.WithActorID(ctx, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
