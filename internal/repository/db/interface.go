package db

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on unique key conflicts
	ErrAlreadyExists = errors.New("already exists")
	// ErrInsufficientCredits is returned by DeductCredits when the
	// conditional update would push used credits above the total
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// UserStore persists accounts for the identity provider
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string, isAdmin bool) (*User, error)
}

// ChatStore persists chats and their append-only messages
type ChatStore interface {
	CreateChat(ctx context.Context, userID string, mode ChatMode, title string) (*Chat, error)
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	GetChatsForUser(ctx context.Context, userID string) ([]Chat, error)
	ChatBelongsToUser(ctx context.Context, chatID, userID string) (bool, error)
	UpdateChatTitle(ctx context.Context, chatID, title string) error
	DeleteChat(ctx context.Context, chatID string) error

	AppendMessage(ctx context.Context, chatID, role, content string, modelID *string) (*Message, error)
	GetMessages(ctx context.Context, chatID string) ([]Message, error)
}

// ModelStore persists model descriptors
type ModelStore interface {
	ListModels(ctx context.Context) ([]ModelDescriptor, error)
	GetModel(ctx context.Context, modelID string) (*ModelDescriptor, error)
	CreateModel(ctx context.Context, model ModelDescriptor) (*ModelDescriptor, error)
	UpdateModel(ctx context.Context, modelID string, patch ModelPatch) (*ModelDescriptor, error)
}

// CreditStore persists per-user credit balances.
// DeductCredits must be a single atomic conditional update per user.
type CreditStore interface {
	EnsureCredits(ctx context.Context, userID string, defaultTotal int) (*CreditBalance, error)
	DeductCredits(ctx context.Context, userID string, amount int) (*CreditBalance, error)
	AddCredits(ctx context.Context, userID string, amount int) (*CreditBalance, error)
}

// DocumentStore persists user documents
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc Document) (*Document, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetDocumentsForUser(ctx context.Context, userID string) ([]Document, error)
	UpdateDocument(ctx context.Context, id string, patch DocumentPatch) (*Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Database defines the interface for all database operations
// This allows for easier testing through mocking and decouples the services from the specific database implementation
type Database interface {
	UserStore
	ChatStore
	ModelStore
	CreditStore
	DocumentStore

	Ping(ctx context.Context) error
	Close() error
}
