package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned when registering an existing username
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidToken is returned for malformed, expired or forged tokens
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the JWT claims issued at login
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to a request context
type Identity struct {
	UserID   string
	Username string
	IsAdmin  bool
}

// Service issues and verifies tokens and manages accounts
type Service struct {
	users      db.UserStore
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewService creates an auth Service
func NewService(users db.UserStore, secret []byte, expiration time.Duration) *Service {
	return &Service{
		users:      users,
		secret:     secret,
		expiration: expiration,
		now:        time.Now,
	}
}

// Register creates a regular user and returns it with a fresh token
func (s *Service) Register(ctx context.Context, username, email, password string) (*db.User, string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.users.CreateUser(ctx, username, email, hash, false)
	if err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, "", ErrUsernameTaken
		}
		return nil, "", fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}

	logger.Log.WithFields(logrus.Fields{"username": user.Username, "user_id": user.ID}).Info("User registered")
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token
func (s *Service) Login(ctx context.Context, username, password string) (*db.User, string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Log.WithField("username", username).Info("Login failed: user not found")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("error loading user: %w", err)
	}

	if !VerifyPassword(user.PasswordHash, password) {
		logger.Log.WithField("username", username).Info("Login failed: invalid password")
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}

	logger.Log.WithField("username", username).Info("User logged in")
	return user, token, nil
}

// CurrentUser loads the account behind a validated identity.
// A token whose user no longer exists is rejected as invalid.
func (s *Service) CurrentUser(ctx context.Context, id *Identity) (*db.User, error) {
	user, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

// GenerateToken signs an HS256 token for user
func (s *Service) GenerateToken(user *db.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a token and returns the identity it carries
func (s *Service) ValidateToken(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{UserID: claims.UserID, Username: claims.Username, IsAdmin: claims.IsAdmin}, nil
}

// SeedAdmin creates the admin account if it does not exist yet
func (s *Service) SeedAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		logger.Log.Debug("ADMIN_USERNAME/ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		logger.Log.WithField("username", username).Info("Admin user already exists, skipping seed")
		return nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("error checking admin user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.users.CreateUser(ctx, username, "", hash, true); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
		return fmt.Errorf("error seeding admin user: %w", err)
	}

	logger.Log.WithField("username", username).Info("Admin user seeded successfully")
	return nil
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a password against a bcrypt hash
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
