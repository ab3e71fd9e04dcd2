package handlers

import (
	"net/http"
	"time"

	"mitra-ai/internal/app"
	"mitra-ai/internal/auth"
	"mitra-ai/pkg/validation"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type UserResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at"`
}

// AuthHandlers serves registration and login
type AuthHandlers struct {
	validator *validation.AuthRequestValidator
	auth      *auth.Service
}

// NewAuthHandlers creates a new AuthHandlers
func NewAuthHandlers(config *app.Config) *AuthHandlers {
	return &AuthHandlers{
		validator: validation.NewAuthRequestValidator(),
		auth:      config.Auth,
	}
}

// RegisterHandler creates an account and returns a token for it
func (h *AuthHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	creds, err := h.validator.ValidateRegister(validation.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	user, token, err := h.auth.Register(r.Context(), creds.Username, creds.Email, creds.Password)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendJSON(w, http.StatusCreated, AuthResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
}

// LoginHandler verifies credentials and returns a token
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	creds, err := h.validator.ValidateLogin(validation.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	user, token, err := h.auth.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, AuthResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
}

// CurrentUserHandler returns the account behind the caller's token
func (h *AuthHandlers) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CurrentUser(r.Context(), mustIdentity(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, UserResponse{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

// HealthHandler reports whether the store is reachable and how many
// messages were billed at the fallback cost because the registry was down
func HealthHandler(config *app.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := config.DB.Ping(r.Context()); err != nil {
			sendError(w, http.StatusServiceUnavailable, "Database unavailable", nil)
			return
		}
		sendJSON(w, http.StatusOK, map[string]any{
			"status":                    "ok",
			"registry_fallback_charges": config.Registry.FallbackCharges(),
		})
	}
}
