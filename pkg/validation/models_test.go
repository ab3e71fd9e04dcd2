package validation

import "testing"

func ptr[T any](v T) *T { return &v }

func TestModelRequestValidator_ValidateCreate(t *testing.T) {
	validator := NewModelRequestValidator()

	tests := []struct {
		name    string
		in      ModelInput
		wantErr bool
	}{
		{"valid", ModelInput{ModelID: "openai/gpt-4o", DisplayName: ptr("GPT-4o"), CostPerMessage: ptr(5)}, false},
		{"free model", ModelInput{ModelID: "x/free", DisplayName: ptr("Free"), CostPerMessage: ptr(0)}, false},
		{"missing id", ModelInput{DisplayName: ptr("GPT-4o"), CostPerMessage: ptr(5)}, true},
		{"missing name", ModelInput{ModelID: "openai/gpt-4o", CostPerMessage: ptr(5)}, true},
		{"blank name", ModelInput{ModelID: "openai/gpt-4o", DisplayName: ptr("  "), CostPerMessage: ptr(5)}, true},
		{"missing cost", ModelInput{ModelID: "openai/gpt-4o", DisplayName: ptr("GPT-4o")}, true},
		{"negative cost", ModelInput{ModelID: "openai/gpt-4o", DisplayName: ptr("GPT-4o"), CostPerMessage: ptr(-1)}, true},
		{"id with space", ModelInput{ModelID: "gpt 4o", DisplayName: ptr("GPT-4o"), CostPerMessage: ptr(5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validator.ValidateCreate(tt.in); (err != nil) != tt.wantErr {
				t.Errorf("ValidateCreate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModelRequestValidator_ValidateUpdate(t *testing.T) {
	validator := NewModelRequestValidator()

	tests := []struct {
		name    string
		in      ModelInput
		wantErr bool
	}{
		{"cost only", ModelInput{CostPerMessage: ptr(2)}, false},
		{"deactivate", ModelInput{IsActive: ptr(false)}, false},
		{"empty patch", ModelInput{}, true},
		{"negative cost", ModelInput{CostPerMessage: ptr(-2)}, true},
		{"blank name", ModelInput{DisplayName: ptr("")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validator.ValidateUpdate(tt.in); (err != nil) != tt.wantErr {
				t.Errorf("ValidateUpdate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
