package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"

	"github.com/sirupsen/logrus"
)

const creditColumns = `user_id, total_credits, used_credits, created_at, updated_at`

// EnsureCredits returns the user's balance, creating it with defaultTotal
// on first use. Concurrent first calls converge on a single row.
func (p *PostgresDB) EnsureCredits(ctx context.Context, userID string, defaultTotal int) (*db.CreditBalance, error) {
	if !validID(userID) {
		return nil, db.ErrNotFound
	}

	insert := `
	INSERT INTO user_credits (user_id, total_credits, used_credits)
	VALUES ($1, $2, 0)
	ON CONFLICT (user_id) DO NOTHING
	`
	res, err := p.conn.ExecContext(ctx, insert, userID, defaultTotal)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error creating credit balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "total": defaultTotal}).Info("Created credit balance")
	}

	return scanBalance(p.conn.QueryRowContext(ctx, `SELECT `+creditColumns+` FROM user_credits WHERE user_id = $1`, userID))
}

// DeductCredits charges amount in a single conditional update.
// Zero affected rows means the charge would overdraw the balance.
func (p *PostgresDB) DeductCredits(ctx context.Context, userID string, amount int) (*db.CreditBalance, error) {
	if !validID(userID) {
		return nil, db.ErrNotFound
	}

	query := `
	UPDATE user_credits
	SET used_credits = used_credits + $2, updated_at = NOW()
	WHERE user_id = $1 AND used_credits + $2 <= total_credits
	RETURNING ` + creditColumns

	balance, err := scanBalance(p.conn.QueryRowContext(ctx, query, userID, amount))
	if errors.Is(err, db.ErrNotFound) {
		return nil, db.ErrInsufficientCredits
	}
	return balance, err
}

// AddCredits raises a user's total allowance
func (p *PostgresDB) AddCredits(ctx context.Context, userID string, amount int) (*db.CreditBalance, error) {
	if !validID(userID) {
		return nil, db.ErrNotFound
	}

	query := `
	UPDATE user_credits
	SET total_credits = total_credits + $2, updated_at = NOW()
	WHERE user_id = $1
	RETURNING ` + creditColumns

	return scanBalance(p.conn.QueryRowContext(ctx, query, userID, amount))
}

func scanBalance(row rowScanner) (*db.CreditBalance, error) {
	var b db.CreditBalance
	if err := row.Scan(&b.UserID, &b.TotalCredits, &b.UsedCredits, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning credit balance: %w", err)
	}
	return &b, nil
}
