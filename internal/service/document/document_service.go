package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"

	"github.com/sirupsen/logrus"
)

var (
	// ErrDocumentNotFound is returned when the document does not exist
	ErrDocumentNotFound = errors.New("document not found")
	// ErrForbidden is returned when the document belongs to another user
	ErrForbidden = errors.New("document does not belong to user")
	// ErrChatNotFound is returned when the linked chat is missing or not the caller's
	ErrChatNotFound = errors.New("linked chat not found")
	// ErrInvalidKind is returned for an unknown document kind
	ErrInvalidKind = errors.New("invalid document kind")
)

// CreateDocumentCommand carries a new document for UserID
type CreateDocumentCommand struct {
	UserID  string
	ChatID  *string
	Title   string
	Content string
	Kind    db.DocumentKind
}

// DocumentService manages a user's saved documents
type DocumentService struct {
	docs  db.DocumentStore
	chats db.ChatStore
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(docs db.DocumentStore, chats db.ChatStore) *DocumentService {
	return &DocumentService{docs: docs, chats: chats}
}

// Create stores a document. A linked chat must belong to the same user.
func (s *DocumentService) Create(ctx context.Context, cmd CreateDocumentCommand) (*db.Document, error) {
	if cmd.Kind == "" {
		cmd.Kind = db.KindGenerated
	}
	if !cmd.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	if cmd.ChatID != nil {
		c, err := s.chats.GetChat(ctx, *cmd.ChatID)
		if errors.Is(err, db.ErrNotFound) || (err == nil && c.UserID != cmd.UserID) {
			return nil, ErrChatNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load chat: %w", err)
		}
	}

	doc, err := s.docs.CreateDocument(ctx, db.Document{
		UserID:    cmd.UserID,
		ChatID:    cmd.ChatID,
		Title:     cmd.Title,
		Content:   cmd.Content,
		Kind:      cmd.Kind,
		WordCount: WordCount(cmd.Content),
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

// List returns the user's documents, most recently updated first
func (s *DocumentService) List(ctx context.Context, userID string) ([]db.Document, error) {
	docs, err := s.docs.GetDocumentsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve documents: %w", err)
	}
	return docs, nil
}

// Get returns a document if the user owns it
func (s *DocumentService) Get(ctx context.Context, id, userID string) (*db.Document, error) {
	return s.owned(ctx, id, userID)
}

// Update applies patch to a document the user owns. The word count follows the content.
func (s *DocumentService) Update(ctx context.Context, id, userID string, patch db.DocumentPatch) (*db.Document, error) {
	if patch.Kind != nil && !patch.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	if _, err := s.owned(ctx, id, userID); err != nil {
		return nil, err
	}
	if patch.Content != nil {
		words := WordCount(*patch.Content)
		patch.WordCount = &words
	}

	doc, err := s.docs.UpdateDocument(ctx, id, patch)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return doc, nil
}

// Delete removes a document the user owns
func (s *DocumentService) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.docs.DeleteDocument(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"document_id": id, "user_id": userID}).Info("Document deleted")
	return nil
}

func (s *DocumentService) owned(ctx context.Context, id, userID string) (*db.Document, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.UserID != userID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// WordCount counts whitespace-separated words
func WordCount(content string) int {
	return len(strings.Fields(content))
}
