package metrics

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type requestIDContextKeyType struct{}

var requestIDContextKey requestIDContextKeyType

// RequestIDMiddleware assigns a correlation id to every request — the
// incoming X-Request-ID header if the caller supplied one, otherwise a fresh
// uuid — echoes it back on the response, and attaches it to the request
// context so downstream handlers and logging can pick it up. It has no
// dependency on a Registry and runs independently of Interceptor; hosts that
// want correlated log lines should install it ahead of Interceptor in the
// chain.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the correlation id attached by
// RequestIDMiddleware, or "" if none is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
