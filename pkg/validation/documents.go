package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxDocumentLength caps document content, in characters
const MaxDocumentLength = 200_000

var documentKinds = map[string]bool{
	"uploaded":  true,
	"generated": true,
	"academic":  true,
}

// DocumentInput is the decoded body of a document create or update request.
// On update, nil fields are left untouched.
type DocumentInput struct {
	Title   *string
	Content *string
	Kind    *string
	ChatID  *string
}

// DocumentRequestValidator validates document requests
type DocumentRequestValidator struct{}

// NewDocumentRequestValidator creates a new DocumentRequestValidator
func NewDocumentRequestValidator() *DocumentRequestValidator {
	return &DocumentRequestValidator{}
}

// ValidateCreate requires a title and content and returns the input trimmed.
// The kind defaults to generated.
func (v *DocumentRequestValidator) ValidateCreate(in DocumentInput) (DocumentInput, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return DocumentInput{}, errors.New("title is required")
	}
	if in.Content == nil {
		return DocumentInput{}, errors.New("content is required")
	}
	if in.Kind == nil || strings.TrimSpace(*in.Kind) == "" {
		generated := "generated"
		in.Kind = &generated
	}
	return v.validate(in)
}

// ValidateUpdate checks the fields that are present; at least one must be
func (v *DocumentRequestValidator) ValidateUpdate(in DocumentInput) (DocumentInput, error) {
	if in.ChatID != nil {
		return DocumentInput{}, errors.New("chat_id cannot be changed")
	}
	if in.Title == nil && in.Content == nil && in.Kind == nil {
		return DocumentInput{}, errors.New("no fields to update")
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return DocumentInput{}, errors.New("title cannot be empty")
	}
	return v.validate(in)
}

func (v *DocumentRequestValidator) validate(in DocumentInput) (DocumentInput, error) {
	out := DocumentInput{Content: in.Content}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if n := utf8.RuneCountInString(title); n > MaxTitleLength {
			return DocumentInput{}, fmt.Errorf("title must be at most %d characters, got %d", MaxTitleLength, n)
		}
		out.Title = &title
	}
	if in.Content != nil {
		if n := utf8.RuneCountInString(*in.Content); n > MaxDocumentLength {
			return DocumentInput{}, fmt.Errorf("content must be at most %d characters, got %d", MaxDocumentLength, n)
		}
	}
	if in.Kind != nil {
		kind := strings.ToLower(strings.TrimSpace(*in.Kind))
		if !documentKinds[kind] {
			return DocumentInput{}, fmt.Errorf("type must be one of: uploaded, generated, academic; got %s", kind)
		}
		out.Kind = &kind
	}
	if in.ChatID != nil {
		chatID := strings.TrimSpace(*in.ChatID)
		if chatID != "" {
			out.ChatID = &chatID
		}
	}
	return out, nil
}
