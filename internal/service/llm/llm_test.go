package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mitra-ai/internal/config"
	"mitra-ai/internal/repository/db"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenRouterClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenRouterClient(&config.LLMConfig{
		OpenRouterAPIKey: "test-key",
		BaseURL:          server.URL,
		MaxTokens:        800,
		Temperature:      0.7,
	})
	if err != nil {
		t.Fatalf("NewOpenRouterClient() error = %v", err)
	}
	return client
}

const completionJSON = `{
	"id": "gen-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test/model",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %q}}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestOpenRouterClient_Complete_SendsHistoryInOrder(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fmt.Sprintf(completionJSON, "the reply")))
	})

	history := []Message{
		{Role: "user", Content: "A"},
		{Role: "assistant", Content: "B"},
		{Role: "user", Content: "C"},
	}
	reply, err := client.Complete(context.Background(), "system prompt", history, "test/model")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "the reply" {
		t.Errorf("Complete() = %q, want %q", reply, "the reply")
	}

	if got.Model != "test/model" {
		t.Errorf("model = %q, want test/model", got.Model)
	}
	want := []Message{
		{Role: "system", Content: "system prompt"},
		{Role: "user", Content: "A"},
		{Role: "assistant", Content: "B"},
		{Role: "user", Content: "C"},
	}
	if len(got.Messages) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(got.Messages), len(want))
	}
	for i := range want {
		if got.Messages[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got.Messages[i], want[i])
		}
	}
}

func TestOpenRouterClient_Complete_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "code": 429}}`))
	})

	_, err := client.Complete(context.Background(), "sys", []Message{{Role: "user", Content: "hi"}}, "test/model")

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Complete() error = %v, want *UpstreamError", err)
	}
	if upstream.Code != http.StatusTooManyRequests {
		t.Errorf("Code = %d, want 429", upstream.Code)
	}
	if !upstream.Retryable {
		t.Error("429 should be retryable")
	}
}

func TestOpenRouterClient_Complete_EmptyReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fmt.Sprintf(completionJSON, "   ")))
	})

	_, err := client.Complete(context.Background(), "sys", []Message{{Role: "user", Content: "hi"}}, "test/model")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("Complete() error = %v, want ErrEmptyCompletion", err)
	}
}

func TestOpenRouterClient_Complete_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "sys", []Message{{Role: "user", Content: "hi"}}, "test/model")

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Complete() error = %v, want *UpstreamError", err)
	}
	if upstream.Code != http.StatusGatewayTimeout || !upstream.Retryable {
		t.Errorf("got %+v, want retryable 504", upstream)
	}
}

func TestNewOpenRouterClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenRouterClient(&config.LLMConfig{}); err == nil {
		t.Error("NewOpenRouterClient() error = nil, want missing key error")
	}
}

func TestNewModelClient_UnknownProvider(t *testing.T) {
	_, err := NewModelClient(context.Background(), &config.LLMConfig{Provider: "carrier-pigeon", OpenRouterAPIKey: "k"})
	if err == nil {
		t.Error("NewModelClient() error = nil, want unknown provider error")
	}
}

func TestAsUpstreamError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, 499},
		{"empty", ErrEmptyCompletion, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusBadGateway},
		{"already upstream", &UpstreamError{Code: 503, Message: "down"}, 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AsUpstreamError(tt.err); got.Code != tt.code {
				t.Errorf("AsUpstreamError(%v).Code = %d, want %d", tt.err, got.Code, tt.code)
			}
		})
	}
	if AsUpstreamError(nil) != nil {
		t.Error("AsUpstreamError(nil) should be nil")
	}
}

func TestSystemPrompt(t *testing.T) {
	for _, mode := range []db.ChatMode{db.ModeResearch, db.ModeCreate, db.ModeEdit} {
		p := SystemPrompt(mode)
		if !strings.HasPrefix(p, basePrompt) {
			t.Errorf("SystemPrompt(%s) missing base prompt", mode)
		}
		if p == basePrompt {
			t.Errorf("SystemPrompt(%s) has no mode instruction", mode)
		}
	}
	if SystemPrompt(db.ModeResearch) == SystemPrompt(db.ModeEdit) {
		t.Error("modes should produce different prompts")
	}
}

func TestGenkitModelName(t *testing.T) {
	if got := genkitModelName("openai/gpt-4o-mini"); got != "openrouter/openai/gpt-4o-mini" {
		t.Errorf("genkitModelName() = %q", got)
	}
	if got := genkitModelName("openrouter/x"); got != "openrouter/x" {
		t.Errorf("genkitModelName() = %q", got)
	}
}
