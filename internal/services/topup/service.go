// Package topup funds a wallet from a tokenized card via Stripe.
package topup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	pkgerrors "pesaflow/internal/errors"
	"pesaflow/internal/models"
	"pesaflow/internal/repositories"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/charge"
)

// Top-up bounds in minor units.
const (
	MinTopupAmount int64 = 100
	MaxTopupAmount int64 = 500000
)

type Service interface {
	TopUp(ctx context.Context, userID uint, cardToken string, amount int64) (*models.Transaction, error)
}

type service struct {
	accounts repositories.AccountRepository
}

func NewService(accounts repositories.AccountRepository) Service {
	return &service{accounts: accounts}
}

func (s *service) TopUp(ctx context.Context, userID uint, cardToken string, amount int64) (*models.Transaction, error) {
	if amount < MinTopupAmount || amount > MaxTopupAmount {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "amount out of bounds",
			"min":    MinTopupAmount,
			"max":    MaxTopupAmount,
		})
	}
	if cardToken == "" {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "card token is required",
		})
	}

	account, err := s.accounts.GetByID(userID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	if account.IsLocked {
		return nil, pkgerrors.ErrDisputeLocked
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String("kes"),
		Description: stripe.String(fmt.Sprintf("Wallet top-up for account %d", userID)),
	}
	if err := params.SetSource(cardToken); err != nil {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "invalid card token",
		})
	}

	ch, err := charge.New(params)
	if err != nil {
		return nil, pkgerrors.ErrGateway.WithDetails(map[string]interface{}{
			"reason": err.Error(),
		})
	}
	if !ch.Paid {
		return nil, errors.New("charge was not paid")
	}

	now := time.Now().UTC()
	tx := &models.Transaction{
		Reference:               uuid.NewString(),
		Type:                    models.TransactionTypeTopup,
		FromUserID:              userID,
		ToUserID:                &userID,
		Amount:                  amount,
		Status:                  models.TransactionStatusCompleted,
		GatewayTransactionID:    ch.ID,
		GatewayConfirmationCode: ch.ID,
		CompletedAt:             &now,
		Metadata: models.NewJSON(map[string]interface{}{
			"stripe_charge": ch.ID,
		}),
	}

	err = s.accounts.ExecuteInTransaction(func(r repositories.AccountRepository) error {
		if err := r.IncrementBalance(userID, amount); err != nil {
			return err
		}
		return r.CreateTransaction(tx)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}
