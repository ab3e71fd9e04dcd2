package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"mitra-ai/internal/config"
	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/service/credits"
	"mitra-ai/internal/service/llm"
)

// MockChatStore is a func-field implementation of db.ChatStore.
// Unset funcs return "not implemented".
type MockChatStore struct {
	CreateChatFunc        func(ctx context.Context, userID string, mode db.ChatMode, title string) (*db.Chat, error)
	GetChatFunc           func(ctx context.Context, chatID string) (*db.Chat, error)
	GetChatsForUserFunc   func(ctx context.Context, userID string) ([]db.Chat, error)
	ChatBelongsToUserFunc func(ctx context.Context, chatID, userID string) (bool, error)
	UpdateChatTitleFunc   func(ctx context.Context, chatID, title string) error
	DeleteChatFunc        func(ctx context.Context, chatID string) error
	AppendMessageFunc     func(ctx context.Context, chatID, role, content string, modelID *string) (*db.Message, error)
	GetMessagesFunc       func(ctx context.Context, chatID string) ([]db.Message, error)
}

var errNotImplemented = errors.New("not implemented")

func (m *MockChatStore) CreateChat(ctx context.Context, userID string, mode db.ChatMode, title string) (*db.Chat, error) {
	if m.CreateChatFunc != nil {
		return m.CreateChatFunc(ctx, userID, mode, title)
	}
	return nil, errNotImplemented
}

func (m *MockChatStore) GetChat(ctx context.Context, chatID string) (*db.Chat, error) {
	if m.GetChatFunc != nil {
		return m.GetChatFunc(ctx, chatID)
	}
	return nil, errNotImplemented
}

func (m *MockChatStore) GetChatsForUser(ctx context.Context, userID string) ([]db.Chat, error) {
	if m.GetChatsForUserFunc != nil {
		return m.GetChatsForUserFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *MockChatStore) ChatBelongsToUser(ctx context.Context, chatID, userID string) (bool, error) {
	if m.ChatBelongsToUserFunc != nil {
		return m.ChatBelongsToUserFunc(ctx, chatID, userID)
	}
	return false, errNotImplemented
}

func (m *MockChatStore) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	if m.UpdateChatTitleFunc != nil {
		return m.UpdateChatTitleFunc(ctx, chatID, title)
	}
	return errNotImplemented
}

func (m *MockChatStore) DeleteChat(ctx context.Context, chatID string) error {
	if m.DeleteChatFunc != nil {
		return m.DeleteChatFunc(ctx, chatID)
	}
	return errNotImplemented
}

func (m *MockChatStore) AppendMessage(ctx context.Context, chatID, role, content string, modelID *string) (*db.Message, error) {
	if m.AppendMessageFunc != nil {
		return m.AppendMessageFunc(ctx, chatID, role, content, modelID)
	}
	return nil, errNotImplemented
}

func (m *MockChatStore) GetMessages(ctx context.Context, chatID string) ([]db.Message, error) {
	if m.GetMessagesFunc != nil {
		return m.GetMessagesFunc(ctx, chatID)
	}
	return nil, errNotImplemented
}

// CompleteCall records one ModelClient.Complete invocation
type CompleteCall struct {
	SystemPrompt string
	History      []llm.Message
	ModelID      string
}

// MockModelClient is a func-field llm.ModelClient that records its calls
type MockModelClient struct {
	CompleteFunc func(ctx context.Context, systemPrompt string, history []llm.Message, modelID string) (string, error)

	mu    sync.Mutex
	calls []CompleteCall
}

func (m *MockModelClient) Complete(ctx context.Context, systemPrompt string, history []llm.Message, modelID string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, CompleteCall{
		SystemPrompt: systemPrompt,
		History:      append([]llm.Message(nil), history...),
		ModelID:      modelID,
	})
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, history, modelID)
	}
	return "mock reply", nil
}

// Calls returns a copy of the recorded calls
func (m *MockModelClient) Calls() []CompleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompleteCall(nil), m.calls...)
}

// MockLedger is a func-field implementation of the pipeline's ledger
type MockLedger struct {
	AuthorizeFunc func(ctx context.Context, userID string, cost int) (bool, credits.Balance, error)
	DeductFunc    func(ctx context.Context, userID string, cost int) (credits.Balance, error)
}

func (m *MockLedger) Authorize(ctx context.Context, userID string, cost int) (bool, credits.Balance, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, userID, cost)
	}
	return false, credits.Balance{}, errNotImplemented
}

func (m *MockLedger) Deduct(ctx context.Context, userID string, cost int) (credits.Balance, error) {
	if m.DeductFunc != nil {
		return m.DeductFunc(ctx, userID, cost)
	}
	return credits.Balance{}, errNotImplemented
}

// FixedCost resolves every model to the same cost
type FixedCost int

func (c FixedCost) ResolveCost(ctx context.Context, modelID string) int {
	return int(c)
}

// NewMockConfig returns an AppConfig suitable for wiring tests
func NewMockConfig() *config.AppConfig {
	return &config.AppConfig{
		Server: config.ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Database: config.DatabaseConfig{Driver: "memory"},
		LLM: config.LLMConfig{
			Provider:     "openrouter",
			DefaultModel: "test/default-model",
			MaxTokens:    800,
			Temperature:  0.7,
			Timeout:      5 * time.Second,
		},
		Auth: config.AuthConfig{
			JWTSecret:       []byte("test-secret-key-that-is-at-least-32-chars"),
			TokenExpiration: time.Hour,
		},
		Credits:  config.CreditsConfig{DefaultAllowance: 100, FallbackCost: 1},
		Registry: config.RegistryConfig{CacheTTL: time.Second},
		RateLimit: config.RateLimitConfig{
			Prefix: "test:ratelimit",
			Limit:  100,
			Window: time.Minute,
		},
		Models:   NewMockModelsConfig(),
		LogLevel: "error",
	}
}

// NewMockModelsConfig returns a small seed list
func NewMockModelsConfig() *config.ModelsConfig {
	return config.NewModelsConfigFromList([]config.Model{
		{ID: "test/default-model", Name: "Default", Provider: "Test", CostPerMessage: 1, IsFree: true},
		{ID: "test/premium-model", Name: "Premium", Provider: "Test", CostPerMessage: 5},
	})
}
