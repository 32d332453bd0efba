package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/yuchialin/cvspay/internal"
)

// Middleware applies a Limiter keyed by client system when authenticated,
// falling back to the remote address for anonymous endpoints.
func Middleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(limitKey(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				appErr := &internal.AppError{
					Type:       internal.ErrorTypeValidation,
					Code:       internal.ErrCodeRateLimited,
					Message:    "too many requests",
					StatusCode: http.StatusTooManyRequests,
				}
				_ = json.NewEncoder(w).Encode(internal.Response{Error: appErr})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func limitKey(r *http.Request) string {
	if clientSystem := internal.ClientSystemFromContext(r.Context()); clientSystem != "" {
		return clientSystem
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
