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

// CreateChat creates a new chat for a user
func (p *PostgresDB) CreateChat(ctx context.Context, userID string, mode db.ChatMode, title string) (*db.Chat, error) {
	chat := &db.Chat{
		ID:     uuid.New().String(),
		UserID: userID,
		Mode:   mode,
		Title:  title,
	}

	query := `
	INSERT INTO chats (id, user_id, mode, title)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at, updated_at
	`

	err := p.conn.QueryRowContext(ctx, query, chat.ID, userID, string(mode), title).Scan(&chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating chat: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"chat_id": chat.ID, "user_id": userID, "mode": mode}).Info("Created new chat")

	return chat, nil
}

// GetChat retrieves a chat by id
func (p *PostgresDB) GetChat(ctx context.Context, chatID string) (*db.Chat, error) {
	if !validID(chatID) {
		return nil, db.ErrNotFound
	}

	var chat db.Chat
	var mode string
	query := `SELECT id, user_id, mode, title, created_at, updated_at FROM chats WHERE id = $1`

	err := p.conn.QueryRowContext(ctx, query, chatID).Scan(&chat.ID, &chat.UserID, &mode, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving chat: %w", err)
	}
	chat.Mode = db.ChatMode(mode)

	return &chat, nil
}

// GetChatsForUser lists a user's chats, most recently active first
func (p *PostgresDB) GetChatsForUser(ctx context.Context, userID string) ([]db.Chat, error) {
	if !validID(userID) {
		return []db.Chat{}, nil
	}

	query := `
	SELECT id, user_id, mode, title, created_at, updated_at
	FROM chats
	WHERE user_id = $1
	ORDER BY updated_at DESC
	`

	rows, err := p.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying chats: %w", err)
	}
	defer rows.Close()

	chats := []db.Chat{}
	for rows.Next() {
		var chat db.Chat
		var mode string
		if err := rows.Scan(&chat.ID, &chat.UserID, &mode, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning chat: %w", err)
		}
		chat.Mode = db.ChatMode(mode)
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

// ChatBelongsToUser checks if a chat belongs to a specific user
func (p *PostgresDB) ChatBelongsToUser(ctx context.Context, chatID, userID string) (bool, error) {
	if !validID(chatID) || !validID(userID) {
		return false, nil
	}

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM chats WHERE id = $1 AND user_id = $2)`

	if err := p.conn.QueryRowContext(ctx, query, chatID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking chat ownership: %w", err)
	}

	return exists, nil
}

// UpdateChatTitle replaces the title of a chat
func (p *PostgresDB) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	if !validID(chatID) {
		return db.ErrNotFound
	}

	res, err := p.conn.ExecContext(ctx, `UPDATE chats SET title = $2, updated_at = NOW() WHERE id = $1`, chatID, title)
	if err != nil {
		return fmt.Errorf("error updating chat title: %w", err)
	}
	return expectOneRow(res)
}

// DeleteChat removes a chat; messages go with it through ON DELETE CASCADE
func (p *PostgresDB) DeleteChat(ctx context.Context, chatID string) error {
	if !validID(chatID) {
		return db.ErrNotFound
	}

	res, err := p.conn.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("error deleting chat: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	logger.Log.WithField("chat_id", chatID).Info("Deleted chat")
	return nil
}

// AppendMessage adds a message to a chat and bumps the chat's updated_at.
// The insert and the bump share a transaction so ordering by seq stays
// consistent with what listing shows.
func (p *PostgresDB) AppendMessage(ctx context.Context, chatID, role, content string, modelID *string) (*db.Message, error) {
	if !validID(chatID) {
		return nil, db.ErrNotFound
	}

	tx, err := p.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	msg := &db.Message{
		ID:      uuid.New().String(),
		ChatID:  chatID,
		Role:    role,
		Content: content,
		ModelID: modelID,
	}

	var model sql.NullString
	if modelID != nil {
		model = sql.NullString{String: *modelID, Valid: true}
	}

	query := `
	INSERT INTO messages (id, chat_id, role, content, model_id)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING seq, created_at
	`

	if err := tx.QueryRowContext(ctx, query, msg.ID, chatID, role, content, model).Scan(&msg.Seq, &msg.CreatedAt); err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error adding message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, chatID); err != nil {
		return nil, fmt.Errorf("error updating chat timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing message: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"message_id": msg.ID,
		"role":       role,
		"seq":        msg.Seq,
	}).Debug("Appended message")

	return msg, nil
}

// GetMessages retrieves all messages for a chat in append order
func (p *PostgresDB) GetMessages(ctx context.Context, chatID string) ([]db.Message, error) {
	if !validID(chatID) {
		return []db.Message{}, nil
	}

	query := `
	SELECT id, seq, chat_id, role, content, model_id, created_at
	FROM messages
	WHERE chat_id = $1
	ORDER BY seq ASC
	`

	rows, err := p.conn.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	messages := []db.Message{}
	for rows.Next() {
		var msg db.Message
		var model sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Seq, &msg.ChatID, &msg.Role, &msg.Content, &model, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		if model.Valid {
			m := model.String
			msg.ModelID = &m
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}
