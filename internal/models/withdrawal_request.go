package models

import (
	"time"

	"gorm.io/gorm"
)

// Withdrawal request statuses. A request only ever moves forward:
// pending -> matched -> in_progress -> completed, with cancelled
// reachable from any non-terminal state. No state is re-enterable.
const (
	RequestStatusPending    = "pending"
	RequestStatusMatched    = "matched"
	RequestStatusInProgress = "in_progress"
	RequestStatusCompleted  = "completed"
	RequestStatusCancelled  = "cancelled"
	RequestStatusExpired    = "expired"
)

// Transition actions accepted by PATCH /api/withdrawals/:id.
const (
	ActionAccept       = "accept"
	ActionAgentArrived = "agent_arrived"
	ActionAgentConfirm = "agent_confirm"
	ActionUserConfirm  = "user_confirm"
	ActionComplete     = "complete"
	ActionCancel       = "cancel"
)

// WithdrawalRequest is a customer's request for physical cash from a
// nearby agent. Rows are never deleted, only status-terminated.
type WithdrawalRequest struct {
	gorm.Model
	UserID  uint  `gorm:"not null;index"`
	AgentID *uint `gorm:"index"`

	Amount   int64  `gorm:"not null"`
	Location string `gorm:"default:''"`

	Latitude  float64
	Longitude float64

	Status string `gorm:"not null;default:'pending';index"`

	UserConfirmed  bool `gorm:"default:false"`
	AgentConfirmed bool `gorm:"default:false"`

	Dispute       bool   `gorm:"default:false"`
	DisputeReason string `gorm:"default:''"`
	CancelledBy   string `gorm:"default:''"`
	CancelReason  string `gorm:"default:''"`

	AcceptedAt     *time.Time
	AgentArrivedAt *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	ExpiresAt      *time.Time
}

// Active reports whether the request still blocks the user from opening
// another one. A pending request past its expiry no longer counts.
func (r *WithdrawalRequest) Active(now time.Time) bool {
	switch r.Status {
	case RequestStatusPending:
		return r.ExpiresAt == nil || now.Before(*r.ExpiresAt)
	case RequestStatusMatched, RequestStatusInProgress:
		return true
	default:
		return false
	}
}
