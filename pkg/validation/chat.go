package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxMessageLength caps a single chat message, in characters
	MaxMessageLength = 32000
	// MaxModelIDLength caps model identifiers
	MaxModelIDLength = 200
	// MaxTitleLength caps chat titles
	MaxTitleLength = 200
	// MaxGrantAmount caps a single admin credit grant
	MaxGrantAmount = 1_000_000
)

// Chat modes accepted at the boundary. "riset" is kept as an alias of research.
var modeAliases = map[string]string{
	"research": "research",
	"riset":    "research",
	"create":   "create",
	"edit":     "edit",
}

// SendMessageInput is the decoded body of a send-message request
type SendMessageInput struct {
	Content string
	Mode    string
	ModelID string
}

// ChatRequestValidator validates chat-related requests
type ChatRequestValidator struct{}

// NewChatRequestValidator creates a new ChatRequestValidator
func NewChatRequestValidator() *ChatRequestValidator {
	return &ChatRequestValidator{}
}

// ValidateMessage validates a chat message
func (v *ChatRequestValidator) ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("content cannot be empty")
	}
	if n := utf8.RuneCountInString(message); n > MaxMessageLength {
		return fmt.Errorf("content must be at most %d characters, got %d", MaxMessageLength, n)
	}
	return nil
}

// NormalizeMode maps a mode name or alias to its canonical form.
// An empty mode is returned as empty.
func (v *ChatRequestValidator) NormalizeMode(mode string) (string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return "", nil
	}
	canonical, ok := modeAliases[mode]
	if !ok {
		return "", fmt.Errorf("mode must be one of: research, create, edit; got %s", mode)
	}
	return canonical, nil
}

// ValidateModelID validates an optional model identifier
func (v *ChatRequestValidator) ValidateModelID(modelID string) error {
	if modelID == "" {
		return nil
	}
	if len(modelID) > MaxModelIDLength {
		return fmt.Errorf("model_id must be at most %d characters, got %d", MaxModelIDLength, len(modelID))
	}
	if strings.IndexFunc(modelID, unicode.IsSpace) >= 0 {
		return errors.New("model_id must not contain whitespace")
	}
	return nil
}

// ValidateSendMessage checks a send-message body and returns it normalized
func (v *ChatRequestValidator) ValidateSendMessage(in SendMessageInput) (SendMessageInput, error) {
	if err := v.ValidateMessage(in.Content); err != nil {
		return SendMessageInput{}, err
	}
	mode, err := v.NormalizeMode(in.Mode)
	if err != nil {
		return SendMessageInput{}, err
	}
	modelID := strings.TrimSpace(in.ModelID)
	if err := v.ValidateModelID(modelID); err != nil {
		return SendMessageInput{}, err
	}
	return SendMessageInput{Content: in.Content, Mode: mode, ModelID: modelID}, nil
}

// ValidateCreateChat checks a create-chat body. The mode defaults to research.
func (v *ChatRequestValidator) ValidateCreateChat(mode, title string) (string, string, error) {
	canonical, err := v.NormalizeMode(mode)
	if err != nil {
		return "", "", err
	}
	if canonical == "" {
		canonical = "research"
	}
	title = strings.TrimSpace(title)
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return "", "", fmt.Errorf("title must be at most %d characters, got %d", MaxTitleLength, n)
	}
	return canonical, title, nil
}

// ValidateGrant validates an admin credit grant amount
func (v *ChatRequestValidator) ValidateGrant(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	if amount > MaxGrantAmount {
		return fmt.Errorf("amount must be at most %d, got %d", MaxGrantAmount, amount)
	}
	return nil
}
