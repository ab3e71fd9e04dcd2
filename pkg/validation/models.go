package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ModelInput is the decoded body of a model create or update request.
// Nil fields are absent from the request.
type ModelInput struct {
	ModelID        string
	DisplayName    *string
	Provider       *string
	CostPerMessage *int
	IsActive       *bool
	IsFree         *bool
}

// ModelRequestValidator validates model registry admin requests
type ModelRequestValidator struct {
	chat *ChatRequestValidator
}

// NewModelRequestValidator creates a new ModelRequestValidator
func NewModelRequestValidator() *ModelRequestValidator {
	return &ModelRequestValidator{chat: NewChatRequestValidator()}
}

// ValidateCreate requires an id, a display name and a non-negative cost
func (v *ModelRequestValidator) ValidateCreate(in ModelInput) error {
	if strings.TrimSpace(in.ModelID) == "" {
		return errors.New("model_id cannot be empty")
	}
	if err := v.chat.ValidateModelID(in.ModelID); err != nil {
		return err
	}
	if in.DisplayName == nil || strings.TrimSpace(*in.DisplayName) == "" {
		return errors.New("display_name cannot be empty")
	}
	if in.CostPerMessage == nil {
		return errors.New("cost_per_message is required")
	}
	return v.validateFields(in)
}

// ValidateUpdate checks only the fields that are present
func (v *ModelRequestValidator) ValidateUpdate(in ModelInput) error {
	if in.DisplayName != nil && strings.TrimSpace(*in.DisplayName) == "" {
		return errors.New("display_name cannot be empty")
	}
	if in.DisplayName == nil && in.Provider == nil && in.CostPerMessage == nil && in.IsActive == nil && in.IsFree == nil {
		return errors.New("no fields to update")
	}
	return v.validateFields(in)
}

func (v *ModelRequestValidator) validateFields(in ModelInput) error {
	if in.CostPerMessage != nil && *in.CostPerMessage < 0 {
		return fmt.Errorf("cost_per_message must not be negative, got %d", *in.CostPerMessage)
	}
	if in.DisplayName != nil && len(*in.DisplayName) > MaxTitleLength {
		return fmt.Errorf("display_name must be at most %d characters", MaxTitleLength)
	}
	return nil
}
