package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/testutil"
)

func TestCreateChat_DefaultTitles(t *testing.T) {
	tests := []struct {
		name  string
		mode  db.ChatMode
		title string
		want  string
	}{
		{"research default", db.ModeResearch, "", "Riset Baru"},
		{"create default", db.ModeCreate, "  ", "Buat Dokumen"},
		{"edit default", db.ModeEdit, "", "Edit Dokumen"},
		{"explicit title", db.ModeResearch, "Bab 2", "Bab 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := &testutil.MockChatStore{
				CreateChatFunc: func(ctx context.Context, userID string, mode db.ChatMode, title string) (*db.Chat, error) {
					return &db.Chat{ID: "chat-1", UserID: userID, Mode: mode, Title: title}, nil
				},
			}
			service := NewConversationService(mockStore)

			chat, err := service.CreateChat(context.Background(), "user-1", tt.mode, tt.title)
			if err != nil {
				t.Fatalf("CreateChat() error = %v", err)
			}
			if chat.Title != tt.want {
				t.Errorf("Title = %q, want %q", chat.Title, tt.want)
			}
		})
	}
}

func TestCreateChat_InvalidMode(t *testing.T) {
	service := NewConversationService(&testutil.MockChatStore{})

	_, err := service.CreateChat(context.Background(), "user-1", db.ChatMode("poetry"), "")
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("CreateChat() error = %v, want ErrInvalidMode", err)
	}
}

func TestListChats(t *testing.T) {
	now := time.Now()
	mockStore := &testutil.MockChatStore{
		GetChatsForUserFunc: func(ctx context.Context, userID string) ([]db.Chat, error) {
			if userID != "user-123" {
				t.Errorf("Expected userID 'user-123', got '%s'", userID)
			}
			return []db.Chat{
				{ID: "chat-2", UserID: userID, Title: "Newer", UpdatedAt: now},
				{ID: "chat-1", UserID: userID, Title: "Older", UpdatedAt: now.Add(-time.Hour)},
			}, nil
		},
	}
	service := NewConversationService(mockStore)

	chats, err := service.ListChats(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}
	if len(chats) != 2 || chats[0].ID != "chat-2" {
		t.Errorf("ListChats() = %+v", chats)
	}
}

func TestListChats_DatabaseError(t *testing.T) {
	mockStore := &testutil.MockChatStore{
		GetChatsForUserFunc: func(ctx context.Context, userID string) ([]db.Chat, error) {
			return nil, errors.New("database connection error")
		},
	}
	service := NewConversationService(mockStore)

	if _, err := service.ListChats(context.Background(), "user-123"); err == nil {
		t.Error("Expected error, got nil")
	}
}

func ownedChatStore(owner string) *testutil.MockChatStore {
	return &testutil.MockChatStore{
		GetChatFunc: func(ctx context.Context, chatID string) (*db.Chat, error) {
			if chatID != "chat-1" {
				return nil, db.ErrNotFound
			}
			return &db.Chat{ID: chatID, UserID: owner}, nil
		},
		GetMessagesFunc: func(ctx context.Context, chatID string) ([]db.Message, error) {
			return []db.Message{
				{ID: "m1", Seq: 1, ChatID: chatID, Role: db.RoleUser, Content: "Halo"},
				{ID: "m2", Seq: 2, ChatID: chatID, Role: db.RoleAssistant, Content: "Hai"},
			}, nil
		},
		DeleteChatFunc: func(ctx context.Context, chatID string) error {
			return nil
		},
	}
}

func TestGetMessages(t *testing.T) {
	tests := []struct {
		name    string
		chatID  string
		userID  string
		wantErr error
		wantLen int
	}{
		{"owner", "chat-1", "alice", nil, 2},
		{"foreign user", "chat-1", "mallory", ErrForbidden, 0},
		{"missing chat", "chat-404", "alice", ErrChatNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewConversationService(ownedChatStore("alice"))

			msgs, err := service.GetMessages(context.Background(), tt.chatID, tt.userID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetMessages() error = %v, want %v", err, tt.wantErr)
			}
			if len(msgs) != tt.wantLen {
				t.Errorf("GetMessages() returned %d messages, want %d", len(msgs), tt.wantLen)
			}
		})
	}
}

func TestDeleteChat(t *testing.T) {
	deleted := false
	mockStore := ownedChatStore("alice")
	mockStore.DeleteChatFunc = func(ctx context.Context, chatID string) error {
		deleted = true
		return nil
	}
	service := NewConversationService(mockStore)

	if err := service.DeleteChat(context.Background(), "chat-1", "mallory"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("DeleteChat() by foreign user error = %v, want ErrForbidden", err)
	}
	if deleted {
		t.Fatal("foreign delete must not reach the store")
	}

	if err := service.DeleteChat(context.Background(), "chat-1", "alice"); err != nil {
		t.Fatalf("DeleteChat() error = %v", err)
	}
	if !deleted {
		t.Error("store delete was not called")
	}
}
