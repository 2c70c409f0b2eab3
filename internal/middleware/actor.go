package middleware

import (
	"net/http"

	"github.com/rpattn/cmdbgraph/internal/auth"
)

// ActorMiddleware resolves the acting user from the X-Actor header so
// mutations record who made them.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.ContextWithActor(r.Context(), r.Header.Get("X-Actor"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
