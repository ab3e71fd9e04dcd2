package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-that-is-at-least-32-chars")

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, testSecret, time.Hour), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "password123", user.PasswordHash)

	_, loginToken, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	id, err := svc.ValidateToken(loginToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, "alice", id.Username)
	assert.False(t, id.IsAdmin)
}

func TestCurrentUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	user, token, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	id, err := svc.ValidateToken(token)
	require.NoError(t, err)
	got, err := svc.CurrentUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = svc.CurrentUser(ctx, &Identity{UserID: "deleted-user"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "alice", "", "password123")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "alice", "", "password456")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, "alice", "", "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc, _ := newService(t)
	user := &db.User{ID: "user-1", Username: "alice"}

	other := NewService(memory.NewStore(), []byte("another-secret-key-that-is-32-chars-long"), time.Hour)
	forged, err := other.GenerateToken(user)
	require.NoError(t, err)

	expiredSvc := NewService(memory.NewStore(), testSecret, time.Minute)
	expiredSvc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredSvc.GenerateToken(user)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", forged},
		{"expired", expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestSeedAdmin(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx, "admin", "admin-password"))
	require.NoError(t, svc.SeedAdmin(ctx, "admin", "admin-password"))

	admin, err := store.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	_, token, err := svc.Login(ctx, "admin", "admin-password")
	require.NoError(t, err)
	id, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin)

	assert.NoError(t, svc.SeedAdmin(ctx, "", ""))
}

func TestMiddleware(t *testing.T) {
	svc, _ := newService(t)
	token, err := svc.GenerateToken(&db.User{ID: "user-1", Username: "alice"})
	require.NoError(t, err)

	var seen *Identity
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + token, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "user-1", seen.UserID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		id     *Identity
		status int
	}{
		{"admin", &Identity{UserID: "a", IsAdmin: true}, http.StatusOK},
		{"regular user", &Identity{UserID: "u"}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/llm-models", nil)
			if tt.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), tt.id))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "password123"))
	assert.False(t, VerifyPassword(hash, "password124"))
}
