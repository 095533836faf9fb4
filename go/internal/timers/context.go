package timers

import (
	"context"
	"net/http"
)

type registryContextKey struct{}

// WithRegistry returns a copy of ctx carrying the registry
func WithRegistry(ctx context.Context, registry *Registry) context.Context {
	return context.WithValue(ctx, registryContextKey{}, registry)
}

// RegistryFromContext returns the registry carried by ctx, if any
func RegistryFromContext(ctx context.Context) (*Registry, bool) {
	registry, ok := ctx.Value(registryContextKey{}).(*Registry)
	return registry, ok && registry != nil
}

// RegistryMiddleware attaches the registry to every request context
func RegistryMiddleware(registry *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRegistry(r.Context(), registry)))
		})
	}
}
