package llm

import (
	"context"
	"fmt"
	"strings"

	"mitra-ai/internal/config"
	"mitra-ai/internal/logger"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
)

const genkitProvider = "openrouter"

// GenkitClient implements ModelClient using Firebase Genkit with OpenRouter via compat_oai
type GenkitClient struct {
	genkit      *genkit.Genkit
	maxTokens   int
	temperature float64
}

// NewGenkitClient creates a Genkit instance configured for OpenRouter
func NewGenkitClient(ctx context.Context, llmConfig *config.LLMConfig) (*GenkitClient, error) {
	if llmConfig.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not configured")
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&compat_oai.OpenAICompatible{
			Provider: genkitProvider,
			APIKey:   llmConfig.OpenRouterAPIKey,
			BaseURL:  llmConfig.BaseURL,
		}),
		genkit.WithDefaultModel(genkitModelName(llmConfig.DefaultModel)),
	)

	logger.Log.WithField("default_model", llmConfig.DefaultModel).Info("Initialized Genkit with OpenRouter provider")

	return &GenkitClient{
		genkit:      g,
		maxTokens:   llmConfig.MaxTokens,
		temperature: llmConfig.Temperature,
	}, nil
}

// Complete sends the system prompt and history through Genkit
func (c *GenkitClient) Complete(ctx context.Context, systemPrompt string, history []Message, modelID string) (string, error) {
	model := genkitModelName(modelID)
	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"message_count": len(history),
	}).Info("Calling Genkit")

	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithMessages(toGenkitMessages(systemPrompt, history)...),
		ai.WithModelName(model),
		ai.WithConfig(&openai.ChatCompletionNewParams{
			MaxTokens:   openai.Int(int64(c.maxTokens)),
			Temperature: openai.Float(c.temperature),
		}),
	)
	if err != nil {
		return "", AsUpstreamError(fmt.Errorf("genkit generation failed: %w", err))
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", AsUpstreamError(ErrEmptyCompletion)
	}
	return content, nil
}

func toGenkitMessages(systemPrompt string, history []Message) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)+1)
	messages = append(messages, &ai.Message{
		Role:    ai.RoleSystem,
		Content: []*ai.Part{ai.NewTextPart(systemPrompt)},
	})
	for _, msg := range history {
		role := ai.RoleUser
		if msg.Role == "assistant" {
			role = ai.RoleModel
		}
		messages = append(messages, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(msg.Content)},
		})
	}
	return messages
}

// genkitModelName ensures the model id carries the plugin prefix
func genkitModelName(modelID string) string {
	if strings.HasPrefix(modelID, genkitProvider+"/") {
		return modelID
	}
	return genkitProvider + "/" + modelID
}
