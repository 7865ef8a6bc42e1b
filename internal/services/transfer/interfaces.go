package transfer

import (
	"context"

	"pesaflow/internal/gateway"
	"pesaflow/internal/models"
)

// GatewayClient is the external mobile-money provider surface the
// engine needs. *gateway.Client satisfies it.
type GatewayClient interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Response, error)
	CheckStatus(ctx context.Context, id string) (*gateway.Response, error)
	PollStatus(ctx context.Context, id string, opts gateway.PollOptions) (*gateway.Response, error)
}

// Notifier is the fire-and-forget notification sink.
type Notifier interface {
	Notify(userID uint, kind string, payload map[string]interface{})
}

// AccountCache drops cached account entries after a balance mutation.
// *cache.CacheService satisfies it.
type AccountCache interface {
	InvalidateAccountID(ctx context.Context, id uint) error
}

// Service is the external transfer engine: gateway-mediated withdrawals
// and sends, plus the internal-rail shortcut.
//
// The returned Transaction reflects the persisted ledger row. A nil
// error means the row is terminal-completed; uncertain outcomes come
// back as ErrVerificationTimeout or ErrGatewayReferenceMissing with the
// row still pending, and failures as ErrGateway with the row failed.
type Service interface {
	Withdraw(ctx context.Context, userID uint, phone string, amount int64, network, reason string) (*models.Transaction, error)
	Send(ctx context.Context, fromUserID uint, toPhone string, amount int64, network, purpose string) (*models.Transaction, error)
}
