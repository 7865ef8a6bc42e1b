package repositories

import (
	"errors"
	"time"

	"pesaflow/internal/models"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrRequestNotFound     = errors.New("withdrawal request not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateAccount    = errors.New("account already exists")

	// ErrDuplicateActiveRequest reports that the partial unique index on
	// active withdrawal requests rejected an insert: the user already has
	// one in flight.
	ErrDuplicateActiveRequest = errors.New("user already has an active withdrawal request")
)

// AccountRepository defines account (wallet holder) persistence plus the
// ledger-mutation helpers both engines share. Balance changes are always
// relative increments executed inside the database so concurrent callers
// interleave without lost updates.
type AccountRepository interface {
	Create(account *models.Account) error
	GetByID(id uint) (*models.Account, error)
	GetByEmail(email string) (*models.Account, error)
	GetByPhone(phone string) (*models.Account, error)
	Update(account *models.Account) error

	// IncrementBalance applies a relative balance change (positive or
	// negative) as a single atomic UPDATE.
	IncrementBalance(id uint, delta int64) error

	// DebitIfSufficient debits amount only when the current balance
	// covers it. Returns false when the guard rejected the debit.
	DebitIfSufficient(id uint, amount int64) (bool, error)

	// CreditAgentSettlement credits amount+commission to an agent and
	// bumps the lifetime commission counter in the same UPDATE.
	CreditAgentSettlement(id uint, amount, commission int64) error

	SetAvailability(id uint, available bool, lat, lng, accuracy float64, hash string, at time.Time) error
	Lock(id uint, reason string) error
	Unlock(id uint) error
	ListAvailableAgents(hashes []string, limit int) ([]*models.Account, error)

	IncrementTokenVersion(id uint) error

	// CreateTransaction inserts a ledger row alongside balance work.
	CreateTransaction(tx *models.Transaction) error

	// ExecuteInTransaction runs fn inside one database transaction,
	// giving it a repository bound to that transaction.
	ExecuteInTransaction(fn func(AccountRepository) error) error
}
