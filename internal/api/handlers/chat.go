package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"mitra-ai/internal/app"
	"mitra-ai/internal/auth"
	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"
	chatService "mitra-ai/internal/service/chat"
	conversationService "mitra-ai/internal/service/conversation"
	"mitra-ai/internal/service/credits"
	"mitra-ai/pkg/validation"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds request bodies; a full-length message fits well inside it
const maxBodyBytes = 1 << 20

// Request/Response types

type SendMessageRequest struct {
	Content string `json:"content"`
	Mode    string `json:"mode,omitempty"`
	ModelID string `json:"model_id,omitempty"`
}

type SendMessageResponse struct {
	UserMessage      MessageData `json:"user_message"`
	AssistantMessage MessageData `json:"assistant_message"`
	CreditsRemaining int         `json:"credits_remaining"`
	Cost             int         `json:"cost"`
	Model            string      `json:"model"`
}

type CreateChatRequest struct {
	Mode  string `json:"mode,omitempty"`
	Title string `json:"title,omitempty"`
}

type ChatInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Mode      string `json:"mode"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ChatsResponse struct {
	Chats []ChatInfo `json:"chats"`
}

type MessageData struct {
	ID        string  `json:"id"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	ModelID   *string `json:"model_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type MessagesResponse struct {
	Messages []MessageData `json:"messages"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ChatHandlers serves chats and the message pipeline
type ChatHandlers struct {
	config              *app.Config
	validator           *validation.ChatRequestValidator
	chatService         *chatService.ChatService
	conversationService *conversationService.ConversationService
}

// NewChatHandlers creates a new ChatHandlers with service layer
func NewChatHandlers(config *app.Config) *ChatHandlers {
	return &ChatHandlers{
		config:              config,
		validator:           validation.NewChatRequestValidator(),
		chatService:         config.ChatService,
		conversationService: config.ConversationService,
	}
}

// SendMessageHandler runs one message through the credit-metered pipeline
func (ch *ChatHandlers) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)
	chatID := chi.URLParam(r, "chatID")
	log := logger.FromRequest(r).WithFields(logrus.Fields{"user_id": id.UserID, "chat_id": chatID})

	var req SendMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := ch.validator.ValidateSendMessage(validation.SendMessageInput{
		Content: req.Content,
		Mode:    req.Mode,
		ModelID: req.ModelID,
	})
	if err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	log.WithFields(logrus.Fields{"message_chars": len(in.Content), "model_id": in.ModelID}).Info("Send message request received")

	result, err := ch.chatService.SendMessage(r.Context(), chatService.SendMessageCommand{
		ChatID:  chatID,
		UserID:  id.UserID,
		Content: in.Content,
		Mode:    db.ChatMode(in.Mode),
		ModelID: in.ModelID,
	})
	if err != nil {
		var insufficient *credits.InsufficientCreditsError
		if result != nil && errors.As(err, &insufficient) {
			// The reply was generated but could not be paid for; deliver it with the 402.
			resp, _ := errorResponseFor(err)
			userMsg, assistantMsg := toMessageData(result.UserMessage), toMessageData(result.AssistantMessage)
			resp.UserMessage, resp.AssistantMessage = &userMsg, &assistantMsg
			log.WithField("remaining", insufficient.Remaining).Warn("Reply delivered without settlement")
			sendJSON(w, resp.Code, resp)
			return
		}
		sendServiceError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, SendMessageResponse{
		UserMessage:      toMessageData(result.UserMessage),
		AssistantMessage: toMessageData(result.AssistantMessage),
		CreditsRemaining: result.CreditsRemaining,
		Cost:             result.Cost,
		Model:            result.Model,
	})
}

// CreateChatHandler opens a new chat for the caller
func (ch *ChatHandlers) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)

	var req CreateChatRequest
	// An empty body creates a research chat with the default title.
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	mode, title, err := ch.validator.ValidateCreateChat(req.Mode, req.Title)
	if err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	c, err := ch.conversationService.CreateChat(r.Context(), id.UserID, db.ChatMode(mode), title)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	logger.FromRequest(r).WithFields(logrus.Fields{"user_id": id.UserID, "chat_id": c.ID, "mode": mode}).Info("Chat created")
	sendJSON(w, http.StatusCreated, toChatInfo(*c))
}

// ListChatsHandler returns the caller's chats
func (ch *ChatHandlers) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)

	chats, err := ch.conversationService.ListChats(r.Context(), id.UserID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	infos := make([]ChatInfo, 0, len(chats))
	for _, c := range chats {
		infos = append(infos, toChatInfo(c))
	}
	sendJSON(w, http.StatusOK, ChatsResponse{Chats: infos})
}

// GetMessagesHandler returns a chat's history in append order
func (ch *ChatHandlers) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)
	chatID := chi.URLParam(r, "chatID")

	messages, err := ch.conversationService.GetMessages(r.Context(), chatID, id.UserID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	msgData := make([]MessageData, 0, len(messages))
	for i := range messages {
		msgData = append(msgData, toMessageData(&messages[i]))
	}
	sendJSON(w, http.StatusOK, MessagesResponse{Messages: msgData})
}

// DeleteChatHandler removes a chat and its messages
func (ch *ChatHandlers) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)
	chatID := chi.URLParam(r, "chatID")

	if err := ch.conversationService.DeleteChat(r.Context(), chatID, id.UserID); err != nil {
		sendServiceError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Chat deleted"})
}

func toChatInfo(c db.Chat) ChatInfo {
	return ChatInfo{
		ID:        c.ID,
		Title:     c.Title,
		Mode:      string(c.Mode),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func toMessageData(m *db.Message) MessageData {
	if m == nil {
		return MessageData{}
	}
	return MessageData{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		ModelID:   m.ModelID,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// mustIdentity returns the caller set by auth.Middleware; routes using it are always behind it
func mustIdentity(r *http.Request) *auth.Identity {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		panic("handlers: route registered without auth middleware")
	}
	return id
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
