package repositories

import (
	"time"

	"pesaflow/internal/models"
)

// TransactionRepository manages ledger rows after insertion: the
// pending -> terminal finalization and the audit queries. Finalizers
// are conditional updates so a duplicate poll can never complete the
// same row twice.
type TransactionRepository interface {
	Create(tx *models.Transaction) error
	GetByID(id uint) (*models.Transaction, error)
	GetByReference(ref string) (*models.Transaction, error)

	// MarkCompleted finalizes a pending row; false means the row was
	// already terminal (or missing) and the caller must not mutate
	// balances.
	MarkCompleted(id uint, confirmationCode string, at time.Time) (bool, error)
	MarkFailed(id uint) (bool, error)

	SetGatewayID(id uint, gatewayID string) error

	HistoryByUser(userID uint, limit, offset int) ([]models.Transaction, error)

	// CommissionExists verifies the agent_commission row for a request
	// actually persisted (re-read-after-write).
	CommissionExists(requestID uint) (bool, error)

	// EnqueueReconciliation records a ledger discrepancy for the
	// out-of-band repair sweep.
	EnqueueReconciliation(item *models.ReconciliationItem) error
}
