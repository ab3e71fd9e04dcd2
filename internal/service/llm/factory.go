package llm

import (
	"context"
	"fmt"

	"mitra-ai/internal/config"
)

// NewModelClient builds the client selected by LLM_PROVIDER
func NewModelClient(ctx context.Context, llmConfig *config.LLMConfig) (ModelClient, error) {
	switch llmConfig.Provider {
	case "openrouter", "":
		return NewOpenRouterClient(llmConfig)
	case "genkit":
		return NewGenkitClient(ctx, llmConfig)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", llmConfig.Provider)
	}
}
