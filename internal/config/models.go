package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Model is a seed entry for the model registry
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Provider       string `json:"provider"`
	CostPerMessage int    `json:"cost_per_message"`
	IsActive       *bool  `json:"is_active,omitempty"`
	IsFree         bool   `json:"is_free"`
}

// Active reports whether the seed entry should start enabled (default true)
func (m Model) Active() bool {
	return m.IsActive == nil || *m.IsActive
}

// ModelsConfig holds the models seeded into the registry on startup
type ModelsConfig struct {
	models []Model
}

// NewModelsConfig creates a new models configuration from a file
func NewModelsConfig(configPath string) (*ModelsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var models []Model
	err = json.Unmarshal(data, &models)
	if err != nil {
		return nil, err
	}

	for i, model := range models {
		if model.ID == "" {
			return nil, fmt.Errorf("model %d: id is required", i)
		}
		if model.CostPerMessage < 0 {
			return nil, fmt.Errorf("model %s: cost_per_message must not be negative", model.ID)
		}
	}

	return &ModelsConfig{models: models}, nil
}

// NewModelsConfigFromList wraps an in-memory list, mainly for tests
func NewModelsConfigFromList(models []Model) *ModelsConfig {
	return &ModelsConfig{models: models}
}

// GetAvailableModels returns the seed list
func (mc *ModelsConfig) GetAvailableModels() []Model {
	if mc == nil {
		return nil
	}
	return mc.models
}
