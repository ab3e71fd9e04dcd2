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

const documentColumns = `id, user_id, chat_id, title, content, kind, word_count, created_at, updated_at`

// CreateDocument inserts a document; an unknown user or chat is reported as not found
func (p *PostgresDB) CreateDocument(ctx context.Context, doc db.Document) (*db.Document, error) {
	query := `
	INSERT INTO documents (id, user_id, chat_id, title, content, kind, word_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + documentColumns

	created, err := scanDocument(p.conn.QueryRowContext(ctx, query,
		uuid.New().String(), doc.UserID, nullString(doc.ChatID), doc.Title, doc.Content, string(doc.Kind), doc.WordCount))
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{"document_id": created.ID, "user_id": created.UserID, "kind": created.Kind}).Info("Created document")
	return created, nil
}

// GetDocument retrieves a document by id
func (p *PostgresDB) GetDocument(ctx context.Context, id string) (*db.Document, error) {
	if !validID(id) {
		return nil, db.ErrNotFound
	}
	return scanDocument(p.conn.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
}

// GetDocumentsForUser lists a user's documents, most recently updated first
func (p *PostgresDB) GetDocumentsForUser(ctx context.Context, userID string) ([]db.Document, error) {
	if !validID(userID) {
		return []db.Document{}, nil
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY updated_at DESC, id`
	rows, err := p.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying documents: %w", err)
	}
	defer rows.Close()

	docs := []db.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// UpdateDocument applies the non-nil fields of patch
func (p *PostgresDB) UpdateDocument(ctx context.Context, id string, patch db.DocumentPatch) (*db.Document, error) {
	if !validID(id) {
		return nil, db.ErrNotFound
	}

	var kind sql.NullString
	if patch.Kind != nil {
		kind = sql.NullString{String: string(*patch.Kind), Valid: true}
	}

	query := `
	UPDATE documents SET
		title      = COALESCE($2, title),
		content    = COALESCE($3, content),
		kind       = COALESCE($4, kind),
		word_count = COALESCE($5, word_count),
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + documentColumns

	return scanDocument(p.conn.QueryRowContext(ctx, query,
		id, nullString(patch.Title), nullString(patch.Content), kind, nullInt(patch.WordCount)))
}

// DeleteDocument removes a document
func (p *PostgresDB) DeleteDocument(ctx context.Context, id string) error {
	if !validID(id) {
		return db.ErrNotFound
	}

	res, err := p.conn.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}

	logger.Log.WithField("document_id", id).Info("Deleted document")
	return nil
}

func scanDocument(row rowScanner) (*db.Document, error) {
	var d db.Document
	var chatID sql.NullString
	var kind string
	err := row.Scan(&d.ID, &d.UserID, &chatID, &d.Title, &d.Content, &kind, &d.WordCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning document: %w", err)
	}
	if chatID.Valid {
		d.ChatID = &chatID.String
	}
	d.Kind = db.DocumentKind(kind)
	return &d, nil
}
