package settlement

import (
	"context"

	"pesaflow/internal/models"
)

// Notifier is the fire-and-forget notification sink. Implementations
// must never block or fail the caller.
type Notifier interface {
	Notify(userID uint, kind string, payload map[string]interface{})
}

// AccountCache drops cached account entries after a balance or lock
// mutation. *cache.CacheService satisfies it.
type AccountCache interface {
	InvalidateAccountID(ctx context.Context, id uint) error
}

// TransitionInput carries optional per-action data.
type TransitionInput struct {
	Reason string
}

// Service is the withdrawal settlement engine. It owns the request
// state machine, the dual-confirmation handshake and the atomic
// settlement routine. It is stateless between calls: the acting party
// is always an explicit parameter.
type Service interface {
	CreateRequest(ctx context.Context, userID uint, amount int64, location string, lat, lng float64) (*models.WithdrawalRequest, error)
	GetActiveRequest(ctx context.Context, userID uint) (*models.WithdrawalRequest, error)
	GetRequest(ctx context.Context, id uint) (*models.WithdrawalRequest, error)

	// Transition applies one state-machine action on behalf of actorID.
	Transition(ctx context.Context, requestID uint, action string, actorID uint, input TransitionInput) (*models.WithdrawalRequest, error)

	// Delete removes a request where allowed; completed requests are
	// immutable and in-flight ones degrade to cancel.
	Delete(ctx context.Context, requestID, actorID uint) (*models.WithdrawalRequest, error)

	// Unlock releases a dispute lock once support has resolved the case.
	Unlock(ctx context.Context, accountID uint) (*models.Account, error)
}
