package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"mitra-ai/internal/logger"
)

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the authenticated caller, if any
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: http.StatusText(status), Code: status, Message: message})
}

// Middleware requires a valid Bearer token and stores the Identity in the request context
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			sendError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		id, err := s.ValidateToken(token)
		if err != nil {
			logger.FromRequest(r).WithError(err).Debug("Rejected token")
			sendError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin rejects callers without the admin flag. It must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			sendError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !id.IsAdmin {
			logger.FromRequest(r).WithField("user_id", id.UserID).Warn("Non-admin access to admin route")
			sendError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
