// Package settlement implements the agent cash-withdrawal engine: the
// request state machine, the dual-confirmation handshake and the
// exactly-once money movement between customer and agent.
package settlement

import (
	"context"
	"fmt"
	"log"
	"time"

	pkgerrors "pesaflow/internal/errors"
	"pesaflow/internal/models"
	"pesaflow/internal/repositories"

	"github.com/google/uuid"
)

type service struct {
	accounts repositories.AccountRepository
	requests repositories.WithdrawalRepository
	txns     repositories.TransactionRepository
	notifier Notifier
	cache    AccountCache
}

// NewService creates the settlement engine.
func NewService(
	accounts repositories.AccountRepository,
	requests repositories.WithdrawalRepository,
	txns repositories.TransactionRepository,
	notifier Notifier,
	cache AccountCache,
) Service {
	if accounts == nil {
		panic("accounts repository is required")
	}
	if requests == nil {
		panic("withdrawal repository is required")
	}
	if txns == nil {
		panic("transaction repository is required")
	}
	if notifier == nil {
		panic("notifier is required")
	}
	if cache == nil {
		panic("account cache is required")
	}
	return &service{
		accounts: accounts,
		requests: requests,
		txns:     txns,
		notifier: notifier,
		cache:    cache,
	}
}

// dropCachedAccounts evicts stale cache entries after a balance or lock
// mutation. Eviction failures degrade reads to the database, so they
// are logged and swallowed.
func (s *service) dropCachedAccounts(ctx context.Context, ids ...uint) {
	for _, id := range ids {
		if err := s.cache.InvalidateAccountID(ctx, id); err != nil {
			log.Printf("settlement: failed to invalidate cached account %d: %v", id, err)
		}
	}
}

func (s *service) CreateRequest(ctx context.Context, userID uint, amount int64, location string, lat, lng float64) (*models.WithdrawalRequest, error) {
	if amount < MinRequestAmount || amount > MaxRequestAmount {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "amount out of bounds",
			"min":    MinRequestAmount,
			"max":    MaxRequestAmount,
		})
	}

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

	// One active request per user: surface the existing one instead of
	// stacking a second.
	if existing, err := s.requests.GetActiveByUser(userID, time.Now().UTC()); err == nil {
		return existing, pkgerrors.ErrActiveRequestExists.WithDetails(map[string]interface{}{
			"request_id": existing.ID,
			"status":     existing.Status,
		})
	} else if err != repositories.ErrRequestNotFound {
		return nil, fmt.Errorf("failed to check active request: %w", err)
	}

	expires := time.Now().UTC().Add(RequestTTL)
	req := &models.WithdrawalRequest{
		UserID:    userID,
		Amount:    amount,
		Location:  location,
		Latitude:  lat,
		Longitude: lng,
		Status:    models.RequestStatusPending,
		ExpiresAt: &expires,
	}
	if err := s.requests.Create(req); err != nil {
		if err == repositories.ErrDuplicateActiveRequest {
			// Lost a concurrent create; the partial unique index is the
			// arbiter, the check above only makes the common case cheap.
			if existing, getErr := s.requests.GetActiveByUser(userID, time.Now().UTC()); getErr == nil {
				return existing, pkgerrors.ErrActiveRequestExists.WithDetails(map[string]interface{}{
					"request_id": existing.ID,
					"status":     existing.Status,
				})
			}
			return nil, pkgerrors.ErrActiveRequestExists
		}
		return nil, err
	}
	return req, nil
}

func (s *service) GetActiveRequest(ctx context.Context, userID uint) (*models.WithdrawalRequest, error) {
	req, err := s.requests.GetActiveByUser(userID, time.Now().UTC())
	if err == repositories.ErrRequestNotFound {
		return nil, pkgerrors.ErrNotFound
	}
	return req, err
}

func (s *service) GetRequest(ctx context.Context, id uint) (*models.WithdrawalRequest, error) {
	req, err := s.requests.GetByID(id)
	if err == repositories.ErrRequestNotFound {
		return nil, pkgerrors.ErrNotFound
	}
	return req, err
}

func (s *service) Transition(ctx context.Context, requestID uint, action string, actorID uint, input TransitionInput) (*models.WithdrawalRequest, error) {
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch action {
	case models.ActionAccept:
		return s.accept(ctx, req, actorID)
	case models.ActionAgentArrived:
		return s.agentArrived(ctx, req, actorID)
	case models.ActionAgentConfirm:
		return s.confirm(ctx, req, actorID, models.RoleAgent)
	case models.ActionUserConfirm:
		return s.confirm(ctx, req, actorID, models.RoleUser)
	case models.ActionComplete:
		return s.complete(ctx, req, actorID)
	case models.ActionCancel:
		return s.cancel(ctx, req, actorID, input.Reason)
	default:
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "unknown action",
			"action": action,
		})
	}
}

func (s *service) accept(ctx context.Context, req *models.WithdrawalRequest, agentID uint) (*models.WithdrawalRequest, error) {
	agent, err := s.accounts.GetByID(agentID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	if !agent.IsAgent {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "only agents can accept withdrawal requests",
		})
	}
	if agent.IsLocked {
		return nil, pkgerrors.ErrDisputeLocked
	}

	// A pending request past its deadline is dead even if nothing has
	// lazily expired it yet.
	if req.Status == models.RequestStatusPending && !req.Active(time.Now().UTC()) {
		if _, err := s.requests.MarkExpired(req.ID); err != nil {
			return nil, err
		}
		fresh, err := s.requests.GetByID(req.ID)
		if err != nil {
			return nil, err
		}
		return nil, s.stateConflict(fresh, models.ActionAccept)
	}

	ok, err := s.requests.Accept(req.ID, agentID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.stateConflict(req, models.ActionAccept)
	}

	fresh, err := s.requests.GetByID(req.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(req.UserID, models.NotifyRequestAccepted, map[string]interface{}{
		"request_id": req.ID,
		"agent_id":   agentID,
		"agent_name": agent.Name,
	})
	return fresh, nil
}

func (s *service) agentArrived(ctx context.Context, req *models.WithdrawalRequest, actorID uint) (*models.WithdrawalRequest, error) {
	if req.AgentID == nil || *req.AgentID != actorID {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "only the assigned agent can report arrival",
		})
	}

	ok, err := s.requests.MarkArrived(req.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.stateConflict(req, models.ActionAgentArrived)
	}

	fresh, err := s.requests.GetByID(req.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(req.UserID, models.NotifyAgentArrived, map[string]interface{}{
		"request_id": req.ID,
	})
	return fresh, nil
}

// confirm flips one party's handover flag. The flip is a conditional
// update, so of two racing confirmations each flips only its own flag;
// whichever caller then observes both flags true tries to claim the
// settlement, and the claim itself guarantees a single winner.
func (s *service) confirm(ctx context.Context, req *models.WithdrawalRequest, actorID uint, role string) (*models.WithdrawalRequest, error) {
	if err := s.checkConfirmActor(req, actorID, role); err != nil {
		return nil, err
	}

	fresh, flipped, err := s.requests.SetConfirmed(req.ID, role)
	if err != nil {
		return nil, err
	}
	if !flipped && fresh.Status != models.RequestStatusInProgress {
		return nil, s.stateConflict(fresh, "confirm")
	}

	counterpart := fresh.UserID
	if role == models.RoleUser {
		if fresh.AgentID == nil {
			counterpart = 0
		} else {
			counterpart = *fresh.AgentID
		}
	}
	if counterpart != 0 {
		s.notifier.Notify(counterpart, models.NotifyPartyConfirmed, map[string]interface{}{
			"request_id": fresh.ID,
			"confirmed":  role,
		})
	}

	if fresh.UserConfirmed && fresh.AgentConfirmed {
		return s.settle(ctx, fresh)
	}
	return fresh, nil
}

func (s *service) checkConfirmActor(req *models.WithdrawalRequest, actorID uint, role string) error {
	if role == models.RoleUser && req.UserID != actorID {
		return pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "only the requesting user can confirm handover",
		})
	}
	if role == models.RoleAgent && (req.AgentID == nil || *req.AgentID != actorID) {
		return pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "only the assigned agent can confirm handover",
		})
	}
	return nil
}

func (s *service) complete(ctx context.Context, req *models.WithdrawalRequest, actorID uint) (*models.WithdrawalRequest, error) {
	if req.UserID != actorID && (req.AgentID == nil || *req.AgentID != actorID) {
		return nil, pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "only a party to the request can complete it",
		})
	}
	if req.Status != models.RequestStatusInProgress || !req.UserConfirmed || !req.AgentConfirmed {
		return nil, s.stateConflict(req, models.ActionComplete)
	}
	return s.settle(ctx, req)
}

// settle runs the money movement exactly once. The claim (a conditional
// in_progress -> completed update requiring both confirmations) elects a
// single winner among any number of concurrent triggers; everyone else
// just returns the fresh row.
func (s *service) settle(ctx context.Context, req *models.WithdrawalRequest) (*models.WithdrawalRequest, error) {
	if req.AgentID == nil {
		return nil, s.stateConflict(req, models.ActionComplete)
	}
	agentID := *req.AgentID
	amount := req.Amount
	commission := Commission(amount)

	// Balance verification happens before the claim so an obviously
	// underfunded request does not bounce through completed and back.
	user, err := s.accounts.GetByID(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user for settlement: %w", err)
	}
	if user.Balance < amount {
		return nil, pkgerrors.ErrInsufficientBalance
	}

	claimed, err := s.requests.ClaimSettlement(req.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another caller won the race; the request is settled or
		// settling. Surface its current state.
		return s.requests.GetByID(req.ID)
	}

	// Balances move atomically as a pair. The guarded debit re-checks
	// funds inside the database, closing the window between the read
	// above and the claim.
	err = s.accounts.ExecuteInTransaction(func(tx repositories.AccountRepository) error {
		ok, err := tx.DebitIfSufficient(req.UserID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.ErrInsufficientBalance
		}
		return tx.CreditAgentSettlement(agentID, amount, commission)
	})
	if err != nil {
		if relErr := s.requests.ReleaseSettlement(req.ID); relErr != nil {
			log.Printf("settlement: failed to release claim on request %d: %v", req.ID, relErr)
		}
		return nil, err
	}

	s.dropCachedAccounts(ctx, req.UserID, agentID)
	s.writeSettlementRows(req, agentID, amount, commission)

	fresh, err := s.requests.GetByID(req.ID)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"request_id": req.ID,
		"amount":     amount,
		"commission": commission,
	}
	s.notifier.Notify(req.UserID, models.NotifyRequestCompleted, payload)
	s.notifier.Notify(agentID, models.NotifyRequestCompleted, payload)

	return fresh, nil
}

// writeSettlementRows records the three ledger rows for a completed
// withdrawal. The balances have already committed, so a failed insert
// is logged and queued for reconciliation rather than rolled back.
func (s *service) writeSettlementRows(req *models.WithdrawalRequest, agentID uint, amount, commission int64) {
	requestID := req.ID
	now := time.Now().UTC()
	rows := []*models.Transaction{
		{
			Reference:   uuid.NewString(),
			Type:        models.TransactionTypeAgentWithdrawal,
			FromUserID:  req.UserID,
			ToUserID:    &agentID,
			Amount:      amount,
			Status:      models.TransactionStatusCompleted,
			RequestID:   &requestID,
			CompletedAt: &now,
		},
		{
			Reference:   uuid.NewString(),
			Type:        models.TransactionTypeAgentReceive,
			FromUserID:  req.UserID,
			ToUserID:    &agentID,
			Amount:      amount,
			Status:      models.TransactionStatusCompleted,
			RequestID:   &requestID,
			CompletedAt: &now,
		},
		{
			Reference:   uuid.NewString(),
			Type:        models.TransactionTypeAgentCommission,
			ToUserID:    &agentID,
			Amount:      commission,
			Status:      models.TransactionStatusCompleted,
			RequestID:   &requestID,
			CompletedAt: &now,
		},
	}

	for _, row := range rows {
		if err := s.txns.Create(row); err != nil {
			log.Printf("settlement: ledger row %s for request %d failed: %v", row.Type, requestID, err)
			s.enqueueRepair(requestID, row.Type, row.Amount, err.Error())
		}
	}

	// The commission row is the agent's pay slip: verify it actually
	// landed, independently of the insert's own error path.
	exists, err := s.txns.CommissionExists(requestID)
	if err != nil {
		log.Printf("settlement: commission verification for request %d failed: %v", requestID, err)
		return
	}
	if !exists {
		log.Printf("settlement: commission row missing for request %d, queued for repair", requestID)
		s.enqueueRepair(requestID, models.TransactionTypeAgentCommission, commission, "commission row missing after settlement")
	}
}

func (s *service) enqueueRepair(requestID uint, txType string, amount int64, detail string) {
	item := &models.ReconciliationItem{
		RequestID: requestID,
		TxType:    txType,
		Amount:    amount,
		Detail:    detail,
	}
	if err := s.txns.EnqueueReconciliation(item); err != nil {
		log.Printf("settlement: failed to enqueue reconciliation for request %d: %v", requestID, err)
	}
}

func (s *service) cancel(ctx context.Context, req *models.WithdrawalRequest, actorID uint, reason string) (*models.WithdrawalRequest, error) {
	cancelledBy, err := cancellingParty(req, actorID)
	if err != nil {
		return nil, err
	}

	fresh, cancelled, err := s.requests.Cancel(req.ID, cancelledBy, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, s.stateConflict(fresh, models.ActionCancel)
	}

	// A cancellation after the other side already confirmed handover is
	// a dispute: the cash may have changed hands. Freeze both parties
	// until support resolves it.
	disputed := (cancelledBy == models.RoleUser && fresh.AgentConfirmed) ||
		(cancelledBy == models.RoleAgent && fresh.UserConfirmed)

	if disputed {
		if err := s.openDispute(ctx, fresh, cancelledBy, reason); err != nil {
			return nil, err
		}
		fresh, err = s.requests.GetByID(fresh.ID)
		if err != nil {
			return nil, err
		}
	}

	payload := map[string]interface{}{
		"request_id":   fresh.ID,
		"cancelled_by": cancelledBy,
		"reason":       reason,
		"dispute":      disputed,
	}
	s.notifier.Notify(fresh.UserID, models.NotifyRequestCancelled, payload)
	if fresh.AgentID != nil {
		s.notifier.Notify(*fresh.AgentID, models.NotifyRequestCancelled, payload)
	}

	return fresh, nil
}

func (s *service) openDispute(ctx context.Context, req *models.WithdrawalRequest, cancelledBy, reason string) error {
	lockReason := fmt.Sprintf("dispute on withdrawal request %d: cancelled by %s (%s)", req.ID, cancelledBy, reason)

	if err := s.requests.MarkDispute(req.ID, lockReason); err != nil {
		return err
	}
	if err := s.accounts.Lock(req.UserID, lockReason); err != nil {
		return fmt.Errorf("failed to lock user account: %w", err)
	}
	if req.AgentID != nil {
		if err := s.accounts.Lock(*req.AgentID, lockReason); err != nil {
			return fmt.Errorf("failed to lock agent account: %w", err)
		}
		s.dropCachedAccounts(ctx, req.UserID, *req.AgentID)
	} else {
		s.dropCachedAccounts(ctx, req.UserID)
	}

	s.notifier.Notify(req.UserID, models.NotifyDisputeOpened, map[string]interface{}{
		"request_id": req.ID,
		"reason":     lockReason,
	})
	if req.AgentID != nil {
		s.notifier.Notify(*req.AgentID, models.NotifyDisputeOpened, map[string]interface{}{
			"request_id": req.ID,
			"reason":     lockReason,
		})
	}
	return nil
}

func (s *service) Delete(ctx context.Context, requestID, actorID uint) (*models.WithdrawalRequest, error) {
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// Ledger history is immutable: a completed request stays; anything
	// still in flight degrades to a cancellation.
	if req.Status == models.RequestStatusCompleted {
		return nil, pkgerrors.ErrStateConflict.WithDetails(map[string]interface{}{
			"reason": "completed requests cannot be deleted",
		})
	}
	if req.Status == models.RequestStatusCancelled || req.Status == models.RequestStatusExpired {
		return req, nil
	}
	return s.cancel(ctx, req, actorID, "deleted by "+fmt.Sprint(actorID))
}

// Unlock releases a dispute lock after support has resolved the case.
// Unlocking an account that is not locked is a no-op.
func (s *service) Unlock(ctx context.Context, accountID uint) (*models.Account, error) {
	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if !account.IsLocked {
		return account, nil
	}

	if err := s.accounts.Unlock(accountID); err != nil {
		return nil, err
	}
	s.dropCachedAccounts(ctx, accountID)

	fresh, err := s.accounts.GetByID(accountID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(accountID, models.NotifyAccountUnlocked, map[string]interface{}{
		"account_id": accountID,
	})
	return fresh, nil
}

func (s *service) stateConflict(req *models.WithdrawalRequest, action string) error {
	return pkgerrors.ErrStateConflict.WithDetails(map[string]interface{}{
		"request_id": req.ID,
		"status":     req.Status,
		"action":     action,
	})
}

func cancellingParty(req *models.WithdrawalRequest, actorID uint) (string, error) {
	switch {
	case req.UserID == actorID:
		return models.RoleUser, nil
	case req.AgentID != nil && *req.AgentID == actorID:
		return models.RoleAgent, nil
	default:
		return "", pkgerrors.ErrValidation.WithDetails(map[string]interface{}{
			"reason": "only a party to the request can cancel it",
		})
	}
}
