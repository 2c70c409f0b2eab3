package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/cmdbgraph/internal/ciloader"
	"github.com/rpattn/cmdbgraph/internal/repository"
)

type ctxKey string

const ciLoaderKey ctxKey = "ciLoader"

// DataLoaderMiddleware attaches a fresh per-request CI loader to the
// context, scoping the batch cache to one request.
func DataLoaderMiddleware(repo repository.CIRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := ciloader.NewCILoader(repo)

			ctx := context.WithValue(r.Context(), ciLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CILoaderFromContext retrieves the request's CI loader, or nil when the
// middleware is not installed.
func CILoaderFromContext(ctx context.Context) *ciloader.CILoader {
	if l, ok := ctx.Value(ciLoaderKey).(*ciloader.CILoader); ok {
		return l
	}
	return nil
}
