// Package transfer implements the gateway-mediated transaction
// lifecycle: create-pending, call the provider, interpret or poll its
// status, and finalize the ledger so balances reflect only confirmed
// outcomes.
package transfer

import (
	"context"
	"fmt"
	"log"
	"time"

	pkgerrors "pesaflow/internal/errors"
	"pesaflow/internal/gateway"
	"pesaflow/internal/models"
	"pesaflow/internal/repositories"
	"pesaflow/internal/validation"

	"github.com/google/uuid"
)

type service struct {
	accounts repositories.AccountRepository
	txns     repositories.TransactionRepository
	gw       GatewayClient
	notifier Notifier
	cache    AccountCache
	poll     gateway.PollOptions
}

// NewService creates the transfer engine. pollOpts zero values fall
// back to the gateway defaults.
func NewService(
	accounts repositories.AccountRepository,
	txns repositories.TransactionRepository,
	gw GatewayClient,
	notifier Notifier,
	cache AccountCache,
	pollOpts gateway.PollOptions,
) Service {
	if accounts == nil {
		panic("accounts repository is required")
	}
	if txns == nil {
		panic("transaction repository is required")
	}
	if gw == nil {
		panic("gateway client is required")
	}
	if notifier == nil {
		panic("notifier is required")
	}
	if cache == nil {
		panic("account cache is required")
	}
	return &service{
		accounts: accounts,
		txns:     txns,
		gw:       gw,
		notifier: notifier,
		cache:    cache,
		poll:     pollOpts,
	}
}

// dropCachedAccounts evicts stale cache entries after a balance change.
// Eviction failures degrade reads to the database, so they are logged
// and swallowed.
func (s *service) dropCachedAccounts(ctx context.Context, ids ...uint) {
	for _, id := range ids {
		if err := s.cache.InvalidateAccountID(ctx, id); err != nil {
			log.Printf("transfer: failed to invalidate cached account %d: %v", id, err)
		}
	}
}

func (s *service) Withdraw(ctx context.Context, userID uint, phone string, amount int64, network, reason string) (*models.Transaction, error) {
	if amount < MinWithdrawAmount || amount > MaxWithdrawAmount {
		return nil, amountError(MinWithdrawAmount, MaxWithdrawAmount)
	}
	if !validation.ValidPhone(phone) {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "invalid phone number",
		})
	}

	user, err := s.precheckSender(userID, amount)
	if err != nil {
		return nil, err
	}

	// Durable pending row before the gateway sees anything: a crash
	// mid-call still leaves a record to reconcile against.
	tx := &models.Transaction{
		Reference:  uuid.NewString(),
		Type:       models.TransactionTypeWithdrawal,
		FromUserID: userID,
		Amount:     amount,
		Network:    network,
		Purpose:    reason,
		Phone:      phone,
		Status:     models.TransactionStatusPending,
	}
	if err := s.txns.Create(tx); err != nil {
		return nil, err
	}

	return s.runGateway(ctx, tx, user, gateway.InitiateRequest{
		Phone:     phone,
		Amount:    amount,
		Network:   network,
		Reference: tx.Reference,
		Reason:    reason,
	})
}

func (s *service) Send(ctx context.Context, fromUserID uint, toPhone string, amount int64, network, purpose string) (*models.Transaction, error) {
	if amount < MinSendAmount || amount > MaxSendAmount {
		return nil, amountError(MinSendAmount, MaxSendAmount)
	}
	if !validation.ValidPhone(toPhone) {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "invalid recipient phone number",
		})
	}

	sender, err := s.precheckSender(fromUserID, amount)
	if err != nil {
		return nil, err
	}

	// Internal rail: both parties live in our ledger, so the transfer
	// settles synchronously without touching the gateway.
	if network == models.NetworkInternal {
		return s.sendInternal(ctx, sender, toPhone, amount, purpose)
	}

	tx := &models.Transaction{
		Reference:  uuid.NewString(),
		Type:       models.TransactionTypeSend,
		FromUserID: fromUserID,
		Amount:     amount,
		Network:    network,
		Purpose:    purpose,
		Phone:      toPhone,
		Status:     models.TransactionStatusPending,
	}
	if err := s.txns.Create(tx); err != nil {
		return nil, err
	}

	return s.runGateway(ctx, tx, sender, gateway.InitiateRequest{
		Phone:     toPhone,
		Amount:    amount,
		Network:   network,
		Reference: tx.Reference,
		Reason:    purpose,
	})
}

func (s *service) precheckSender(userID uint, amount int64) (*models.Account, error) {
	account, err := s.accounts.GetByID(userID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.IsLocked {
		return nil, pkgerrors.ErrDisputeLocked
	}
	if account.Balance < amount {
		return nil, pkgerrors.ErrInsufficientBalance
	}
	return account, nil
}

func (s *service) sendInternal(ctx context.Context, sender *models.Account, toPhone string, amount int64, purpose string) (*models.Transaction, error) {
	recipient, err := s.accounts.GetByPhone(toPhone)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
				"reason": "recipient not found on internal network",
				"phone":  toPhone,
			})
		}
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if recipient.ID == sender.ID {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "cannot send to self",
		})
	}

	now := time.Now().UTC()
	recipientID := recipient.ID
	tx := &models.Transaction{
		Reference:   uuid.NewString(),
		Type:        models.TransactionTypeSend,
		FromUserID:  sender.ID,
		ToUserID:    &recipientID,
		Amount:      amount,
		Network:     models.NetworkInternal,
		Purpose:     purpose,
		Phone:       toPhone,
		Status:      models.TransactionStatusCompleted,
		CompletedAt: &now,
	}

	err = s.accounts.ExecuteInTransaction(func(r repositories.AccountRepository) error {
		ok, err := r.DebitIfSufficient(sender.ID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.ErrInsufficientBalance
		}
		if err := r.IncrementBalance(recipientID, amount); err != nil {
			return err
		}
		return r.CreateTransaction(tx)
	})
	if err != nil {
		return nil, err
	}

	s.dropCachedAccounts(ctx, sender.ID, recipientID)

	s.notifier.Notify(sender.ID, models.NotifyPaymentResult, map[string]interface{}{
		"reference": tx.Reference,
		"status":    tx.Status,
		"amount":    amount,
	})
	s.notifier.Notify(recipientID, models.NotifyPaymentResult, map[string]interface{}{
		"reference": tx.Reference,
		"status":    tx.Status,
		"amount":    amount,
	})
	return tx, nil
}

// runGateway drives a pending transaction through initiate, status
// interpretation and polling, then finalizes the ledger. Balances move
// only on a terminal success, and only for the caller that wins the
// pending -> completed finalize.
func (s *service) runGateway(ctx context.Context, tx *models.Transaction, sender *models.Account, req gateway.InitiateRequest) (*models.Transaction, error) {
	resp, err := s.gw.Initiate(ctx, req)
	if err != nil {
		// Initiate failures are surfaced immediately and never retried
		// here: a retry could double-pay.
		if _, markErr := s.txns.MarkFailed(tx.ID); markErr != nil {
			log.Printf("transfer: failed to mark %s failed: %v", tx.Reference, markErr)
		}
		tx.Status = models.TransactionStatusFailed
		return tx, pkgerrors.ErrGateway.WithDetails(map[string]interface{}{
			"reason": err.Error(),
		})
	}

	if resp.TransactionID == "" {
		// The provider accepted the call but gave us nothing to track.
		// Neither success nor failure can be assumed; the row stays
		// pending for reconciliation.
		return tx, pkgerrors.ErrGatewayReferenceMissing
	}

	tx.GatewayTransactionID = resp.TransactionID
	if err := s.txns.SetGatewayID(tx.ID, resp.TransactionID); err != nil {
		log.Printf("transfer: failed to record gateway id for %s: %v", tx.Reference, err)
	}

	final, err := s.resolveStatus(ctx, resp)
	if err != nil {
		return tx, err
	}

	switch {
	case final.Succeeded():
		return s.finalizeSuccess(ctx, tx, sender, final)
	default:
		// FAILED, EXPIRED or any other explicit non-success.
		if _, err := s.txns.MarkFailed(tx.ID); err != nil {
			log.Printf("transfer: failed to mark %s failed: %v", tx.Reference, err)
		}
		tx.Status = models.TransactionStatusFailed
		s.notifier.Notify(sender.ID, models.NotifyPaymentResult, map[string]interface{}{
			"reference": tx.Reference,
			"status":    tx.Status,
		})
		return tx, pkgerrors.ErrGateway.WithDetails(map[string]interface{}{
			"gateway_status": final.Status,
		})
	}
}

// resolveStatus turns the initiate response into a terminal gateway
// status, polling whenever the provider's answer is non-terminal.
func (s *service) resolveStatus(ctx context.Context, resp *gateway.Response) (*gateway.Response, error) {
	gatewayID := resp.TransactionID

	if resp.Succeeded() {
		// Optimistic success still gets one confirmatory check; if that
		// check itself fails we trust the initiate response rather than
		// blocking the user.
		confirmed, err := s.gw.CheckStatus(ctx, gatewayID)
		if err != nil {
			log.Printf("transfer: confirmatory check for %s failed, using initiate response: %v", gatewayID, err)
			return resp, nil
		}
		// The check can walk an optimistic success back to pending; a
		// non-terminal answer goes through the poll loop like any other.
		resp = confirmed
	}

	if resp.Terminal() {
		return resp, nil
	}

	polled, err := s.gw.PollStatus(ctx, gatewayID, s.poll)
	if err != nil {
		// Budget exhausted or caller cancelled: the transaction stays
		// pending and no balance moves.
		return nil, pkgerrors.ErrVerificationTimeout.WithDetails(map[string]interface{}{
			"gateway_transaction_id": gatewayID,
		})
	}
	return polled, nil
}

func (s *service) finalizeSuccess(ctx context.Context, tx *models.Transaction, sender *models.Account, final *gateway.Response) (*models.Transaction, error) {
	now := time.Now().UTC()

	// The conditional pending -> completed update is the exactly-once
	// gate: a duplicate poll or racing cancel observes zero rows and
	// must not touch balances.
	won, err := s.txns.MarkCompleted(tx.ID, final.ConfirmationCode, now)
	if err != nil {
		return tx, err
	}
	if !won {
		fresh, err := s.txns.GetByID(tx.ID)
		if err != nil {
			return tx, err
		}
		return fresh, nil
	}

	ok, err := s.accounts.DebitIfSufficient(sender.ID, tx.Amount)
	if err != nil {
		return tx, err
	}
	if !ok {
		// The payout already happened upstream; a failed debit here is
		// a ledger discrepancy, not a reason to pretend the transfer
		// did not happen.
		log.Printf("transfer: debit guard rejected %s after gateway success, queued for repair", tx.Reference)
		item := &models.ReconciliationItem{
			RequestID: tx.ID,
			TxType:    tx.Type,
			Amount:    tx.Amount,
			Detail:    "debit guard rejected after gateway success",
		}
		if err := s.txns.EnqueueReconciliation(item); err != nil {
			log.Printf("transfer: failed to enqueue reconciliation for %s: %v", tx.Reference, err)
		}
	}
	s.dropCachedAccounts(ctx, sender.ID)

	tx.Status = models.TransactionStatusCompleted
	tx.CompletedAt = &now
	tx.GatewayConfirmationCode = final.ConfirmationCode

	s.notifier.Notify(sender.ID, models.NotifyPaymentResult, map[string]interface{}{
		"reference":         tx.Reference,
		"status":            tx.Status,
		"amount":            tx.Amount,
		"confirmation_code": final.ConfirmationCode,
	})
	return tx, nil
}

func amountError(min, max int64) error {
	return pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
		"reason": "amount out of bounds",
		"min":    min,
		"max":    max,
	})
}
