package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mitra-ai/internal/config"
	"mitra-ai/internal/logger"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

// OpenRouterClient implements ModelClient against OpenRouter's
// OpenAI-compatible chat completions endpoint
type OpenRouterClient struct {
	client      openai.Client
	maxTokens   int
	temperature float64
}

// NewOpenRouterClient creates a client from LLM configuration.
// Retries are disabled; callers decide whether to retry.
func NewOpenRouterClient(llmConfig *config.LLMConfig) (*OpenRouterClient, error) {
	if llmConfig.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not configured")
	}

	client := openai.NewClient(
		option.WithAPIKey(llmConfig.OpenRouterAPIKey),
		option.WithBaseURL(llmConfig.BaseURL),
		option.WithHeader("HTTP-Referer", "https://mitra-ai.local"),
		option.WithHeader("X-Title", "Mitra AI"),
		option.WithMaxRetries(0),
	)

	return &OpenRouterClient{
		client:      client,
		maxTokens:   llmConfig.MaxTokens,
		temperature: llmConfig.Temperature,
	}, nil
}

// Complete sends the system prompt and history and returns the reply text
func (c *OpenRouterClient) Complete(ctx context.Context, systemPrompt string, history []Message, modelID string) (string, error) {
	start := time.Now()
	logger.Log.WithFields(logrus.Fields{
		"model":         modelID,
		"message_count": len(history),
	}).Info("Calling OpenRouter API")

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(modelID),
		Messages:    toOpenAIMessages(systemPrompt, history),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", AsUpstreamError(ErrEmptyCompletion)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", AsUpstreamError(ErrEmptyCompletion)
	}

	logger.Log.WithFields(logrus.Fields{
		"model":             modelID,
		"content_length":    len(content),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"latency_ms":        time.Since(start).Milliseconds(),
	}).Info("OpenRouter completion received")

	return content, nil
}

func toOpenAIMessages(systemPrompt string, history []Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, msg := range history {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

func classifyOpenAIError(err error) *UpstreamError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &UpstreamError{
			Code:      apiErr.StatusCode,
			Message:   "model provider returned an error",
			Retryable: retryableStatus(apiErr.StatusCode),
			Err:       err,
		}
	}
	return AsUpstreamError(err)
}
