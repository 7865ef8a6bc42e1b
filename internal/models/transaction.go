package models

import (
	"time"
)

// Transaction types
const (
	TransactionTypeSend            = "send"
	TransactionTypeWithdrawal      = "withdrawal"
	TransactionTypeAgentWithdrawal = "agent_withdrawal"
	TransactionTypeAgentReceive    = "agent_receive"
	TransactionTypeAgentCommission = "agent_commission"
	TransactionTypeTopup           = "topup"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Payment rails. NetworkInternal marks transfers that settle inside the
// ledger without touching the gateway.
const (
	NetworkInternal = "PESAFLOW"
	NetworkMPesa    = "MPESA"
	NetworkAirtel   = "AIRTEL"
)

// Transaction is an immutable ledger row. Every balance mutation is
// paired with exactly one row; rows move from pending to a terminal
// status once and are never deleted.
type Transaction struct {
	ID         uint   `gorm:"primarykey"`
	Reference  string `gorm:"uniqueIndex;not null"`
	Type       string `gorm:"not null;index"`
	FromUserID uint   `gorm:"index"`
	ToUserID   *uint  `gorm:"index"` // nil for external payouts
	Amount     int64  `gorm:"not null"`
	Network    string `gorm:"default:''"`
	Purpose    string `gorm:"default:''"`
	Phone      string `gorm:"default:''"`
	Status     string `gorm:"not null;default:'pending';index"`

	// RequestID links agent settlement rows to their withdrawal request.
	RequestID *uint `gorm:"index"`

	GatewayTransactionID    string `gorm:"default:'';index"`
	GatewayConfirmationCode string `gorm:"default:''"`

	Metadata JSON `gorm:"type:jsonb"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
