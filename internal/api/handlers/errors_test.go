package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"mitra-ai/internal/auth"
	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/service/chat"
	"mitra-ai/internal/service/conversation"
	"mitra-ai/internal/service/credits"
	"mitra-ai/internal/service/document"
	"mitra-ai/internal/service/llm"
	"mitra-ai/internal/service/registry"
)

func TestErrorResponseFor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantKnown bool
	}{
		{"insufficient credits", &credits.InsufficientCreditsError{Required: 5, Remaining: 2}, http.StatusPaymentRequired, true},
		{"wrapped insufficient credits", fmt.Errorf("settle: %w", &credits.InsufficientCreditsError{Required: 5}), http.StatusPaymentRequired, true},
		{"upstream", &llm.UpstreamError{Code: 503, Message: "down", Retryable: true}, http.StatusInternalServerError, true},
		{"pipeline forbidden", chat.ErrForbidden, http.StatusForbidden, true},
		{"conversation forbidden", conversation.ErrForbidden, http.StatusForbidden, true},
		{"chat not found", conversation.ErrChatNotFound, http.StatusNotFound, true},
		{"model not found", registry.ErrModelNotFound, http.StatusNotFound, true},
		{"model exists", registry.ErrModelExists, http.StatusConflict, true},
		{"store not found", fmt.Errorf("load: %w", db.ErrNotFound), http.StatusNotFound, true},
		{"invalid amount", credits.ErrInvalidAmount, http.StatusBadRequest, true},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, true},
		{"username taken", auth.ErrUsernameTaken, http.StatusConflict, true},
		{"document forbidden", document.ErrForbidden, http.StatusForbidden, true},
		{"document not found", document.ErrDocumentNotFound, http.StatusNotFound, true},
		{"document chat not found", document.ErrChatNotFound, http.StatusNotFound, true},
		{"document kind", document.ErrInvalidKind, http.StatusBadRequest, true},
		{"stale token", auth.ErrInvalidToken, http.StatusUnauthorized, true},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, known := errorResponseFor(tt.err)
			if resp.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", resp.Code, tt.wantCode)
			}
			if known != tt.wantKnown {
				t.Errorf("known = %v, want %v", known, tt.wantKnown)
			}
		})
	}
}

func TestErrorResponseFor_Extras(t *testing.T) {
	resp, _ := errorResponseFor(&credits.InsufficientCreditsError{Required: 5, Remaining: 2})
	if resp.CreditsRemaining == nil || *resp.CreditsRemaining != 2 {
		t.Errorf("CreditsRemaining = %v, want 2", resp.CreditsRemaining)
	}
	if resp.Retryable != nil {
		t.Error("Retryable should be unset on 402")
	}

	resp, _ = errorResponseFor(&llm.UpstreamError{Code: 400, Message: "bad model", Retryable: false})
	if resp.Retryable == nil || *resp.Retryable {
		t.Errorf("Retryable = %v, want false", resp.Retryable)
	}
}

func TestErrorResponseFor_HidesUnexpectedErrors(t *testing.T) {
	resp, _ := errorResponseFor(errors.New("pq: password authentication failed"))
	if resp.Error != http.StatusText(http.StatusInternalServerError) {
		t.Errorf("Error = %q, want generic status text", resp.Error)
	}
}

func TestSendServiceError_WritesJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/chats/x/messages", nil)

	sendServiceError(rec, req, conversation.ErrForbidden)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
