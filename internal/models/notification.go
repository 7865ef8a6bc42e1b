package models

import "time"

// Notification kinds emitted by the engines.
const (
	NotifyRequestAccepted  = "request_accepted"
	NotifyAgentArrived     = "agent_arrived"
	NotifyPartyConfirmed   = "party_confirmed"
	NotifyRequestCompleted = "request_completed"
	NotifyRequestCancelled = "request_cancelled"
	NotifyDisputeOpened    = "dispute_opened"
	NotifyAccountUnlocked  = "account_unlocked"
	NotifyPaymentResult    = "payment_result"
)

// Notification is a fire-and-forget outbox row consumed by the delivery
// pipeline (push/SMS, out of scope here). A failed write never rolls
// back the settlement that produced it.
type Notification struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"not null;index"`
	Kind      string `gorm:"not null"`
	Payload   JSON   `gorm:"type:jsonb"`
	CreatedAt time.Time
}
