package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// ActorRef identifies who produced the event. The id is whatever the
// upstream auth layer put in the X-Actor-Id header.
type ActorRef struct {
	ActorID string `json:"actorId"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

type actorCtxKey struct{}

// WithActor records the caller identity so events emitted further down the
// call chain carry it.
func WithActor(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorCtxKey{}, actorID)
}

// ActorFromContext returns the actor recorded by WithActor, or nil.
func ActorFromContext(ctx context.Context) *ActorRef {
	if ctx == nil {
		return nil
	}
	if id, ok := ctx.Value(actorCtxKey{}).(string); ok && id != "" {
		return &ActorRef{ActorID: id}
	}
	return nil
}
