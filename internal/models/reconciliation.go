package models

import "time"

// ReconciliationItem queues a ledger discrepancy for the out-of-band
// repair sweep: typically a commission row that failed to persist after
// the balance mutation had already committed.
type ReconciliationItem struct {
	ID        uint   `gorm:"primarykey"`
	RequestID uint   `gorm:"not null;index"`
	TxType    string `gorm:"not null"`
	Amount    int64  `gorm:"not null"`
	Detail    string `gorm:"default:''"`
	Resolved  bool   `gorm:"default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
