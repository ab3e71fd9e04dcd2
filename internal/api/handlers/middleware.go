package handlers

import (
	"net/http"
	"strings"

	"mitra-ai/internal/logger"
	"mitra-ai/internal/ratelimit"
)

// RateLimit rejects callers over their per-user budget with 429.
// It must run after auth.Middleware.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := mustIdentity(r)
			if !limiter.Allow(r.Context(), id.UserID) {
				logger.FromRequest(r).WithField("user_id", id.UserID).Info("Rate limit exceeded")
				sendError(w, http.StatusTooManyRequests, "Too many messages, slow down", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS answers preflight requests and adds CORS headers for allowed origins.
// A "*" entry allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[origin]; ok || allowAll {
					if allowAll {
						w.Header().Set("Access-Control-Allow-Origin", "*")
					} else {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
					}
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
