package auth

import (
	"context"
	"strings"
)

type contextKey string

const actorKey contextKey = "actor"

// SystemActor is recorded on mutations made outside any user session.
const SystemActor = "system"

// ContextWithActor returns a new context carrying the acting user
// recorded as changed_by / created_by on every mutation.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, strings.TrimSpace(actor))
}

// ActorFromContext retrieves the acting user from the context, falling
// back to SystemActor when none was resolved.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return SystemActor
	}
	value := ctx.Value(actorKey)
	actor, ok := value.(string)
	if !ok || actor == "" {
		return SystemActor
	}
	return actor
}
