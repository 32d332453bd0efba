package middleware

import (
	"net/http"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/pkg/logger"
)

// ClientContext tags the request logger with the authenticated client
// system. Must run after token validation so the identity is present.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientSystem := internal.ClientSystemFromContext(r.Context())
		if clientSystem == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := logger.With(r.Context(), "clientSystem", clientSystem)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
