package handlers

import (
	"net/http"

	"mitra-ai/internal/app"
	"mitra-ai/internal/logger"
	"mitra-ai/internal/service/credits"
	"mitra-ai/pkg/validation"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type GrantRequest struct {
	Amount int `json:"amount"`
}

// CreditHandlers serves credit balances and admin grants
type CreditHandlers struct {
	validator *validation.ChatRequestValidator
	ledger    *credits.Ledger
}

// NewCreditHandlers creates a new CreditHandlers
func NewCreditHandlers(config *app.Config) *CreditHandlers {
	return &CreditHandlers{
		validator: validation.NewChatRequestValidator(),
		ledger:    config.Ledger,
	}
}

// GetOwnBalanceHandler returns the caller's balance
func (h *CreditHandlers) GetOwnBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)

	balance, err := h.ledger.GetBalance(r.Context(), id.UserID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, balance)
}

// GetUserBalanceHandler returns any user's balance
func (h *CreditHandlers) GetUserBalanceHandler(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.GetBalance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, balance)
}

// GrantHandler adds credits to a user's allowance
func (h *CreditHandlers) GrantHandler(w http.ResponseWriter, r *http.Request) {
	admin := mustIdentity(r)
	userID := chi.URLParam(r, "userID")

	var req GrantRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.ValidateGrant(req.Amount); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	balance, err := h.ledger.Grant(r.Context(), userID, req.Amount)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	logger.FromRequest(r).WithFields(logrus.Fields{
		"admin_id": admin.UserID,
		"user_id":  userID,
		"amount":   req.Amount,
	}).Info("Credits granted by admin")
	sendJSON(w, http.StatusOK, balance)
}
