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

const modelColumns = `model_id, display_name, provider, cost_per_message, is_active, is_free, created_at, updated_at`

// ListModels returns every model descriptor ordered by cost then id
func (p *PostgresDB) ListModels(ctx context.Context) ([]db.ModelDescriptor, error) {
	query := `SELECT ` + modelColumns + ` FROM llm_models ORDER BY cost_per_message ASC, model_id ASC`

	rows, err := p.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying models: %w", err)
	}
	defer rows.Close()

	models := []db.ModelDescriptor{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, *m)
	}

	return models, rows.Err()
}

// GetModel retrieves a single model descriptor
func (p *PostgresDB) GetModel(ctx context.Context, modelID string) (*db.ModelDescriptor, error) {
	query := `SELECT ` + modelColumns + ` FROM llm_models WHERE model_id = $1`
	return scanModel(p.conn.QueryRowContext(ctx, query, modelID))
}

// CreateModel inserts a new model descriptor
func (p *PostgresDB) CreateModel(ctx context.Context, model db.ModelDescriptor) (*db.ModelDescriptor, error) {
	query := `
	INSERT INTO llm_models (model_id, display_name, provider, cost_per_message, is_active, is_free)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + modelColumns

	created, err := scanModel(p.conn.QueryRowContext(ctx, query,
		model.ModelID, model.DisplayName, model.Provider, model.CostPerMessage, model.IsActive, model.IsFree))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, db.ErrAlreadyExists
		}
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{"model_id": created.ModelID, "cost": created.CostPerMessage}).Info("Created model")
	return created, nil
}

// UpdateModel applies the non-nil fields of patch
func (p *PostgresDB) UpdateModel(ctx context.Context, modelID string, patch db.ModelPatch) (*db.ModelDescriptor, error) {
	query := `
	UPDATE llm_models SET
		display_name     = COALESCE($2, display_name),
		provider         = COALESCE($3, provider),
		cost_per_message = COALESCE($4, cost_per_message),
		is_active        = COALESCE($5, is_active),
		is_free          = COALESCE($6, is_free),
		updated_at       = NOW()
	WHERE model_id = $1
	RETURNING ` + modelColumns

	updated, err := scanModel(p.conn.QueryRowContext(ctx, query,
		modelID, nullString(patch.DisplayName), nullString(patch.Provider),
		nullInt(patch.CostPerMessage), nullBool(patch.IsActive), nullBool(patch.IsFree)))
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{"model_id": modelID, "is_active": updated.IsActive}).Info("Updated model")
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner) (*db.ModelDescriptor, error) {
	var m db.ModelDescriptor
	err := row.Scan(&m.ModelID, &m.DisplayName, &m.Provider, &m.CostPerMessage, &m.IsActive, &m.IsFree, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning model: %w", err)
	}
	return &m, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
