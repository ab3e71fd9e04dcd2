package app

import (
	"context"
	"fmt"

	"mitra-ai/internal/auth"
	"mitra-ai/internal/config"
	"mitra-ai/internal/logger"
	"mitra-ai/internal/ratelimit"
	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/repository/memory"
	"mitra-ai/internal/repository/postgres"
	"mitra-ai/internal/service/chat"
	"mitra-ai/internal/service/conversation"
	"mitra-ai/internal/service/credits"
	"mitra-ai/internal/service/document"
	"mitra-ai/internal/service/llm"
	"mitra-ai/internal/service/registry"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Database interface for data persistence
	DB db.Database
	// Centralized application configuration
	AppConfig *config.AppConfig

	Ledger              *credits.Ledger
	Registry            *registry.Registry
	Auth                *auth.Service
	ChatService         *chat.ChatService
	ConversationService *conversation.ConversationService
	DocumentService     *document.DocumentService
	Limiter             ratelimit.Limiter
}

// NewConfig wires the services on top of an opened database, a model client and a limiter
func NewConfig(database db.Database, appConfig *config.AppConfig, client llm.ModelClient, limiter ratelimit.Limiter) *Config {
	ledger := credits.NewLedger(database, appConfig.Credits.DefaultAllowance)
	models := registry.NewRegistry(database, appConfig.Credits.FallbackCost, appConfig.Registry.CacheTTL)

	return &Config{
		DB:        database,
		AppConfig: appConfig,
		Ledger:    ledger,
		Registry:  models,
		Auth:      auth.NewService(database, appConfig.Auth.JWTSecret, appConfig.Auth.TokenExpiration),
		ChatService: chat.NewChatService(database, ledger, models, client, chat.Options{
			DefaultModel: appConfig.LLM.DefaultModel,
			Timeout:      appConfig.LLM.Timeout,
			HistoryLimit: appConfig.Pipeline.HistoryLimit,
		}),
		ConversationService: conversation.NewConversationService(database),
		DocumentService:     document.NewDocumentService(database, database),
		Limiter:             limiter,
	}
}

// Build opens the store, the model client and the limiter selected by appConfig.
// The returned cleanup closes whatever was opened.
func Build(ctx context.Context, appConfig *config.AppConfig) (*Config, func(), error) {
	database, err := OpenDatabase(ctx, appConfig.Database)
	if err != nil {
		return nil, nil, err
	}

	client, err := llm.NewModelClient(ctx, &appConfig.LLM)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create model client: %w", err)
	}

	limiter, closeLimiter, err := ratelimit.New(appConfig.RateLimit)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	cleanup := func() {
		if err := closeLimiter(); err != nil {
			logger.Log.WithError(err).Warn("Error closing rate limiter")
		}
		if err := database.Close(); err != nil {
			logger.Log.WithError(err).Warn("Error closing database")
		}
	}

	return NewConfig(database, appConfig, client, limiter), cleanup, nil
}

// OpenDatabase returns the store named by the configured driver
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (db.Database, error) {
	switch cfg.Driver {
	case "memory":
		logger.Log.Warn("Using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	case "postgres", "":
		pg, err := postgres.NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Bootstrap seeds the model registry and the admin account
func (c *Config) Bootstrap(ctx context.Context) error {
	if err := c.Registry.Seed(ctx, c.AppConfig.Models.GetAvailableModels()); err != nil {
		return fmt.Errorf("failed to seed models: %w", err)
	}
	return c.Auth.SeedAdmin(ctx, c.AppConfig.Auth.AdminUsername, c.AppConfig.Auth.AdminPassword)
}
