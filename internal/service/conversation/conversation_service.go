package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/service/chat"

	"github.com/sirupsen/logrus"
)

var (
	// ErrForbidden is returned when the chat belongs to another user
	ErrForbidden = errors.New("chat does not belong to user")
	// ErrChatNotFound is returned when the chat does not exist
	ErrChatNotFound = errors.New("chat not found")
	// ErrInvalidMode is returned for an unknown chat mode
	ErrInvalidMode = errors.New("invalid chat mode")
)

// ConversationService handles the business logic for chat management
type ConversationService struct {
	store db.ChatStore
}

// NewConversationService creates a new ConversationService
func NewConversationService(store db.ChatStore) *ConversationService {
	return &ConversationService{store: store}
}

// CreateChat opens a chat; an empty title falls back to the mode's default
func (s *ConversationService) CreateChat(ctx context.Context, userID string, mode db.ChatMode, title string) (*db.Chat, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = chat.DefaultTitle(mode)
	}

	c, err := s.store.CreateChat(ctx, userID, mode, title)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return c, nil
}

// ListChats returns the user's chats, most recently active first
func (s *ConversationService) ListChats(ctx context.Context, userID string) ([]db.Chat, error) {
	chats, err := s.store.GetChatsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chats: %w", err)
	}
	return chats, nil
}

// GetMessages returns a chat's messages in append order if the user owns it
func (s *ConversationService) GetMessages(ctx context.Context, chatID, userID string) ([]db.Message, error) {
	if err := s.verifyOwner(ctx, chatID, userID); err != nil {
		return nil, err
	}

	messages, err := s.store.GetMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}
	return messages, nil
}

// DeleteChat deletes a chat and its messages if the user owns it
func (s *ConversationService) DeleteChat(ctx context.Context, chatID, userID string) error {
	if err := s.verifyOwner(ctx, chatID, userID); err != nil {
		return err
	}

	if err := s.store.DeleteChat(ctx, chatID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrChatNotFound
		}
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"chat_id": chatID, "user_id": userID}).Info("Chat deleted")
	return nil
}

func (s *ConversationService) verifyOwner(ctx context.Context, chatID, userID string) error {
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrChatNotFound
		}
		return fmt.Errorf("failed to load chat: %w", err)
	}
	if c.UserID != userID {
		return ErrForbidden
	}
	return nil
}
