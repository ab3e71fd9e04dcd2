package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateUser inserts a user with an already hashed password
func (p *PostgresDB) CreateUser(ctx context.Context, username, email, passwordHash string, isAdmin bool) (*db.User, error) {
	user := &db.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
	}

	query := `
	INSERT INTO users (id, username, email, password_hash, is_admin)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`

	err := p.conn.QueryRowContext(ctx, query, user.ID, username, email, passwordHash, isAdmin).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, db.ErrAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"username": username, "user_id": user.ID, "is_admin": isAdmin}).Info("Created new user")

	return user, nil
}

// GetUserByUsername retrieves a user by username
func (p *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	query := `SELECT id, username, COALESCE(email, ''), password_hash, is_admin, created_at FROM users WHERE username = $1`
	return p.scanUser(p.conn.QueryRowContext(ctx, query, username))
}

// GetUserByID retrieves a user by id
func (p *PostgresDB) GetUserByID(ctx context.Context, id string) (*db.User, error) {
	if !validID(id) {
		return nil, db.ErrNotFound
	}
	query := `SELECT id, username, COALESCE(email, ''), password_hash, is_admin, created_at FROM users WHERE id = $1`
	return p.scanUser(p.conn.QueryRowContext(ctx, query, id))
}

func (p *PostgresDB) scanUser(row *sql.Row) (*db.User, error) {
	var user db.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return &user, nil
}
