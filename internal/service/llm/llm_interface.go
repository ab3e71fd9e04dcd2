package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Message is a single turn sent to the model
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelClient completes a chat given a system prompt and ordered history.
// Implementations must honor ctx cancellation and deadlines.
type ModelClient interface {
	Complete(ctx context.Context, systemPrompt string, history []Message, modelID string) (string, error)
}

// UpstreamError is returned when the model provider fails, times out or
// answers with nothing usable. Retryable tells callers a retry may succeed.
type UpstreamError struct {
	Code      int
	Message   string
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream error %d: %s", e.Code, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ErrEmptyCompletion is wrapped when the provider returned no content
var ErrEmptyCompletion = errors.New("empty completion")

// AsUpstreamError normalizes any client failure into an *UpstreamError.
// Deadline expiry maps to 504, cancellation to 499, and unknown errors to 502.
func AsUpstreamError(err error) *UpstreamError {
	if err == nil {
		return nil
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &UpstreamError{Code: http.StatusGatewayTimeout, Message: "model call timed out", Retryable: true, Err: err}
	case errors.Is(err, context.Canceled):
		return &UpstreamError{Code: 499, Message: "model call canceled", Retryable: true, Err: err}
	case errors.Is(err, ErrEmptyCompletion):
		return &UpstreamError{Code: http.StatusBadGateway, Message: "model returned an empty reply", Retryable: true, Err: err}
	}
	return &UpstreamError{Code: http.StatusBadGateway, Message: "model call failed", Retryable: true, Err: err}
}

// retryableStatus reports whether a provider HTTP status is worth retrying
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
