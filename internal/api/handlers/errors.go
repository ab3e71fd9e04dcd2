package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"mitra-ai/internal/auth"
	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/service/chat"
	"mitra-ai/internal/service/conversation"
	"mitra-ai/internal/service/credits"
	"mitra-ai/internal/service/document"
	"mitra-ai/internal/service/llm"
	"mitra-ai/internal/service/registry"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error            string       `json:"error"`
	Code             int          `json:"code"`
	Message          string       `json:"message"`
	CreditsRemaining *int         `json:"credits_remaining,omitempty"`
	Retryable        *bool        `json:"retryable,omitempty"`
	UserMessage      *MessageData `json:"user_message,omitempty"`
	AssistantMessage *MessageData `json:"assistant_message,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Warn("Error encoding response")
	}
}

func sendError(w http.ResponseWriter, status int, message string, err error) {
	errResp := ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	sendJSON(w, status, errResp)
}

// sendServiceError maps a service-layer error to its HTTP status.
// Unknown errors are logged and answered with a bare 500.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp, known := errorResponseFor(err)
	log := logger.FromRequest(r).WithError(err).WithField("status", resp.Code)
	if !known {
		log.Error("Unhandled service error")
	} else if resp.Code >= http.StatusInternalServerError {
		log.Warn("Request failed")
	} else {
		log.Info("Request rejected")
	}
	sendJSON(w, resp.Code, resp)
}

// errorResponseFor builds the response for err; the bool is false for unexpected errors
func errorResponseFor(err error) (ErrorResponse, bool) {
	resp := func(status int, message string) ErrorResponse {
		return ErrorResponse{Error: err.Error(), Code: status, Message: message}
	}

	var insufficient *credits.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		r := resp(http.StatusPaymentRequired, "Insufficient credits")
		remaining := insufficient.Remaining
		r.CreditsRemaining = &remaining
		return r, true
	}

	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		r := resp(http.StatusInternalServerError, "The model could not answer, please try again")
		retryable := upstream.Retryable
		r.Retryable = &retryable
		return r, true
	}

	switch {
	case errors.Is(err, chat.ErrForbidden), errors.Is(err, conversation.ErrForbidden):
		return resp(http.StatusForbidden, "Chat does not belong to user"), true
	case errors.Is(err, document.ErrForbidden):
		return resp(http.StatusForbidden, "Document does not belong to user"), true
	case errors.Is(err, conversation.ErrChatNotFound), errors.Is(err, document.ErrChatNotFound):
		return resp(http.StatusNotFound, "Chat not found"), true
	case errors.Is(err, document.ErrDocumentNotFound):
		return resp(http.StatusNotFound, "Document not found"), true
	case errors.Is(err, registry.ErrModelNotFound):
		return resp(http.StatusNotFound, "Model not found"), true
	case errors.Is(err, registry.ErrModelExists):
		return resp(http.StatusConflict, "Model already exists"), true
	case errors.Is(err, db.ErrNotFound):
		return resp(http.StatusNotFound, "Not found"), true
	case errors.Is(err, conversation.ErrInvalidMode), errors.Is(err, credits.ErrInvalidAmount), errors.Is(err, document.ErrInvalidKind):
		return resp(http.StatusBadRequest, "Validation failed"), true
	case errors.Is(err, auth.ErrInvalidCredentials):
		return resp(http.StatusUnauthorized, "Invalid username or password"), true
	case errors.Is(err, auth.ErrInvalidToken):
		return resp(http.StatusUnauthorized, "Invalid or expired token"), true
	case errors.Is(err, auth.ErrUsernameTaken):
		return resp(http.StatusConflict, "Username already exists"), true
	}

	return ErrorResponse{
		Error:   http.StatusText(http.StatusInternalServerError),
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
	}, false
}
