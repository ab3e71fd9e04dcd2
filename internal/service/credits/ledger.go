package credits

import (
	"context"
	"errors"
	"fmt"

	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"

	"github.com/sirupsen/logrus"
)

// ErrInvalidAmount is returned for negative costs and non-positive grants
var ErrInvalidAmount = errors.New("invalid credit amount")

// InsufficientCreditsError reports a charge the balance could not cover
type InsufficientCreditsError struct {
	Required  int
	Remaining int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, remaining %d", e.Required, e.Remaining)
}

// Balance is the externally visible view of a user's credits
type Balance struct {
	UserID    string `json:"user_id"`
	Total     int    `json:"total_credits"`
	Used      int    `json:"used_credits"`
	Remaining int    `json:"credits_remaining"`
}

func balanceFrom(b *db.CreditBalance) Balance {
	return Balance{
		UserID:    b.UserID,
		Total:     b.TotalCredits,
		Used:      b.UsedCredits,
		Remaining: b.Remaining(),
	}
}

// Ledger meters per-user credits on top of a db.CreditStore.
// Deduct relies on the store's single conditional update, so it is
// linearizable per user without any locking here.
type Ledger struct {
	store            db.CreditStore
	defaultAllowance int
}

// NewLedger creates a Ledger that opens new balances with defaultAllowance
func NewLedger(store db.CreditStore, defaultAllowance int) *Ledger {
	return &Ledger{store: store, defaultAllowance: defaultAllowance}
}

// GetBalance returns the user's balance, creating it on first use
func (l *Ledger) GetBalance(ctx context.Context, userID string) (Balance, error) {
	b, err := l.store.EnsureCredits(ctx, userID, l.defaultAllowance)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to load credit balance: %w", err)
	}
	return balanceFrom(b), nil
}

// Authorize reports whether the balance currently covers cost.
// It reserves nothing; Deduct is the binding check.
func (l *Ledger) Authorize(ctx context.Context, userID string, cost int) (bool, Balance, error) {
	if cost < 0 {
		return false, Balance{}, ErrInvalidAmount
	}
	balance, err := l.GetBalance(ctx, userID)
	if err != nil {
		return false, Balance{}, err
	}
	return balance.Remaining >= cost, balance, nil
}

// Deduct charges cost atomically. When the charge would overdraw the
// balance it returns *InsufficientCreditsError and nothing changes.
func (l *Ledger) Deduct(ctx context.Context, userID string, cost int) (Balance, error) {
	if cost < 0 {
		return Balance{}, ErrInvalidAmount
	}
	// Make sure the row exists so a missing balance is never mistaken for an empty one.
	current, err := l.GetBalance(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	if cost == 0 {
		return current, nil
	}

	b, err := l.store.DeductCredits(ctx, userID, cost)
	if err != nil {
		if errors.Is(err, db.ErrInsufficientCredits) {
			remaining := current.Remaining
			if latest, lerr := l.GetBalance(ctx, userID); lerr == nil {
				remaining = latest.Remaining
			}
			logger.Log.WithFields(logrus.Fields{
				"user_id":   userID,
				"cost":      cost,
				"remaining": remaining,
			}).Warn("Credit deduction refused")
			return Balance{}, &InsufficientCreditsError{Required: cost, Remaining: remaining}
		}
		return Balance{}, fmt.Errorf("failed to deduct credits: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":   userID,
		"cost":      cost,
		"remaining": b.Remaining(),
	}).Debug("Credits deducted")

	return balanceFrom(b), nil
}

// Grant adds amount to the user's total allowance
func (l *Ledger) Grant(ctx context.Context, userID string, amount int) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	if _, err := l.GetBalance(ctx, userID); err != nil {
		return Balance{}, err
	}
	b, err := l.store.AddCredits(ctx, userID, amount)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to grant credits: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": userID, "amount": amount, "total": b.TotalCredits}).Info("Credits granted")

	return balanceFrom(b), nil
}
