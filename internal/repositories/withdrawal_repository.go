package repositories

import (
	"time"

	"pesaflow/internal/models"
)

// WithdrawalRepository persists withdrawal requests. All transition
// methods are conditional single-row updates: the WHERE clause encodes
// the state-machine precondition and the boolean return reports whether
// this caller won the transition. That is the whole concurrency story —
// two processes racing the same transition see exactly one true.
type WithdrawalRepository interface {
	// Create inserts a new request. The partial unique index on active
	// requests rejects a second in-flight request per user with
	// ErrDuplicateActiveRequest.
	Create(req *models.WithdrawalRequest) error
	GetByID(id uint) (*models.WithdrawalRequest, error)

	// GetActiveByUser returns the user's pending/matched/in_progress
	// request, or ErrRequestNotFound. Expired pending requests are
	// lazily terminated and not returned.
	GetActiveByUser(userID uint, now time.Time) (*models.WithdrawalRequest, error)

	// Accept assigns an agent to a pending request.
	Accept(id, agentID uint, at time.Time) (bool, error)

	// MarkArrived moves a matched request to in_progress.
	MarkArrived(id uint, at time.Time) (bool, error)

	// SetConfirmed flips one party's confirmation flag, only if the
	// request is in_progress and the flag was false. It returns the
	// fresh row and whether this call performed the flip.
	SetConfirmed(id uint, actor string) (*models.WithdrawalRequest, bool, error)

	// ClaimSettlement is the exactly-once settlement guard: it moves
	// in_progress -> completed only when both parties have confirmed.
	// Of any number of concurrent claimants exactly one gets true.
	ClaimSettlement(id uint, at time.Time) (bool, error)

	// ReleaseSettlement undoes a claim whose settlement could not run
	// (insufficient balance), returning the request to in_progress.
	ReleaseSettlement(id uint) error

	// Cancel terminates a non-terminal request and returns the fresh row.
	Cancel(id uint, cancelledBy, reason string, at time.Time) (*models.WithdrawalRequest, bool, error)

	// MarkDispute records a dispute on an already cancelled request.
	MarkDispute(id uint, reason string) error

	// MarkExpired lazily expires a pending request past its deadline.
	MarkExpired(id uint) (bool, error)
}
