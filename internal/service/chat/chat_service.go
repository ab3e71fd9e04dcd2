package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/service/credits"
	"mitra-ai/internal/service/llm"

	"github.com/sirupsen/logrus"
)

// ErrForbidden is returned when the chat does not exist or belongs to someone else
var ErrForbidden = errors.New("chat does not belong to user")

// Ledger is the part of the credit ledger the pipeline needs
type Ledger interface {
	Authorize(ctx context.Context, userID string, cost int) (bool, credits.Balance, error)
	Deduct(ctx context.Context, userID string, cost int) (credits.Balance, error)
}

// CostResolver prices a message for a model id
type CostResolver interface {
	ResolveCost(ctx context.Context, modelID string) int
}

// Options tunes the pipeline
type Options struct {
	// DefaultModel is used when a command does not name a model
	DefaultModel string
	// Timeout bounds the model call
	Timeout time.Duration
	// HistoryLimit keeps only the most recent messages; 0 sends the full history
	HistoryLimit int
}

// SendMessageCommand is a validated inbound chat message
type SendMessageCommand struct {
	ChatID  string
	UserID  string
	Content string
	// Mode overrides the chat's mode for the system prompt when set
	Mode db.ChatMode
	// ModelID is the requested model; empty selects the default
	ModelID string
}

// SendMessageResult reports both sides of the exchange and the new balance
type SendMessageResult struct {
	UserMessage      *db.Message
	AssistantMessage *db.Message
	CreditsRemaining int
	Cost             int
	Model            string
}

// ChatService runs the credit-metered message pipeline
type ChatService struct {
	store    db.ChatStore
	ledger   Ledger
	registry CostResolver
	client   llm.ModelClient
	opts     Options
}

// NewChatService creates a new ChatService
func NewChatService(store db.ChatStore, ledger Ledger, registry CostResolver, client llm.ModelClient, opts Options) *ChatService {
	return &ChatService{
		store:    store,
		ledger:   ledger,
		registry: registry,
		client:   client,
		opts:     opts,
	}
}

// SendMessage authorizes, persists and answers one message, then settles its cost.
//
// Errors and what has been persisted when they are returned:
//   - ErrForbidden: nothing.
//   - *credits.InsufficientCreditsError before the model call: nothing.
//   - *llm.UpstreamError: the user message only; no credits deducted.
//   - *credits.InsufficientCreditsError at settlement: both messages; the
//     result is returned alongside the error.
func (s *ChatService) SendMessage(ctx context.Context, cmd SendMessageCommand) (*SendMessageResult, error) {
	log := logger.Log.WithFields(logrus.Fields{"chat_id": cmd.ChatID, "user_id": cmd.UserID})

	chat, err := s.authorizeChat(ctx, cmd.ChatID, cmd.UserID)
	if err != nil {
		return nil, err
	}

	model := cmd.ModelID
	if model == "" {
		model = s.opts.DefaultModel
	}
	cost := s.registry.ResolveCost(ctx, model)

	ok, balance, err := s.ledger.Authorize(ctx, cmd.UserID, cost)
	if err != nil {
		return nil, fmt.Errorf("failed to check credits: %w", err)
	}
	if !ok {
		log.WithFields(logrus.Fields{"cost": cost, "remaining": balance.Remaining}).Info("Message rejected: insufficient credits")
		return nil, &credits.InsufficientCreditsError{Required: cost, Remaining: balance.Remaining}
	}

	userMsg, err := s.store.AppendMessage(ctx, chat.ID, db.RoleUser, cmd.Content, optional(cmd.ModelID))
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	history, err := s.history(ctx, chat.ID)
	if err != nil {
		return nil, err
	}

	mode := chat.Mode
	if cmd.Mode.Valid() {
		mode = cmd.Mode
	}

	log.WithFields(logrus.Fields{"model": model, "message_count": len(history), "mode": mode}).Debug("Prepared for model call")

	reply, err := s.complete(ctx, llm.SystemPrompt(mode), history, model)
	if err != nil {
		log.WithError(err).WithField("model", model).Warn("Model call failed, user message kept")
		return nil, err
	}

	assistantMsg, err := s.store.AppendMessage(ctx, chat.ID, db.RoleAssistant, reply, &model)
	if err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	if len(history) <= 1 {
		s.retitle(ctx, chat, mode, cmd.Content)
	}

	result := &SendMessageResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		CreditsRemaining: balance.Remaining,
		Cost:             cost,
		Model:            model,
	}

	settled, err := s.ledger.Deduct(ctx, cmd.UserID, cost)
	if err != nil {
		var insufficient *credits.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			result.CreditsRemaining = insufficient.Remaining
			log.WithFields(logrus.Fields{"cost": cost, "remaining": insufficient.Remaining}).Warn("Settlement refused after reply was delivered")
			return result, err
		}
		log.WithError(err).Error("Failed to settle message cost")
		return result, fmt.Errorf("failed to settle credits: %w", err)
	}
	result.CreditsRemaining = settled.Remaining

	log.WithFields(logrus.Fields{"model": model, "cost": cost, "remaining": settled.Remaining}).Info("Message exchange completed")

	return result, nil
}

// authorizeChat loads the chat and verifies the caller owns it
func (s *ChatService) authorizeChat(ctx context.Context, chatID, userID string) (*db.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if chat.UserID != userID {
		logger.Log.WithFields(logrus.Fields{"chat_id": chatID, "user_id": userID}).Warn("Chat ownership check failed")
		return nil, ErrForbidden
	}
	return chat, nil
}

// history returns the persisted messages in seq order, trimmed to HistoryLimit
func (s *ChatService) history(ctx context.Context, chatID string) ([]llm.Message, error) {
	messages, err := s.store.GetMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chat history: %w", err)
	}
	if limit := s.opts.HistoryLimit; limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	history := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

// complete calls the model under the configured timeout and normalizes failures
func (s *ChatService) complete(ctx context.Context, systemPrompt string, history []llm.Message, model string) (string, error) {
	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	reply, err := s.client.Complete(callCtx, systemPrompt, history, model)
	if err == nil && reply == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", llm.AsUpstreamError(fmt.Errorf("%w: %v", context.DeadlineExceeded, err))
		}
		return "", llm.AsUpstreamError(err)
	}
	return reply, nil
}

// retitle renames a chat after its first exchange. Failures are only logged.
func (s *ChatService) retitle(ctx context.Context, chat *db.Chat, mode db.ChatMode, content string) {
	title := GenerateTitle(content, mode)
	if title == "" || title == chat.Title {
		return
	}
	if err := s.store.UpdateChatTitle(ctx, chat.ID, title); err != nil {
		logger.Log.WithError(err).WithField("chat_id", chat.ID).Warn("Failed to update chat title")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
