package models

import (
	"time"

	"gorm.io/gorm"
)

// Account statuses for the Role field.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// Account is a wallet holder: a regular customer or a cash agent.
// Balance and TotalCommissionEarned are integer minor units (cents);
// they are only ever mutated with relative SQL increments, never
// overwritten, so concurrent debits and credits interleave safely.
type Account struct {
	gorm.Model
	Email    string `gorm:"uniqueIndex;not null"`
	Password string `gorm:"not null" json:"-"`
	Name     string `gorm:"not null"`
	Phone    string `gorm:"uniqueIndex;not null"`
	Role     string `gorm:"default:'user'"`

	Balance  int64  `gorm:"not null;default:0"`
	Currency string `gorm:"default:'KES'"`

	IsAgent     bool `gorm:"default:false;index"`
	IsAvailable bool `gorm:"default:false;index"`

	// Last known location fix, agents only.
	Latitude          float64
	Longitude         float64
	LocationAccuracy  float64
	Geohash           string `gorm:"index"`
	LocationUpdatedAt *time.Time

	IsLocked   bool   `gorm:"default:false"`
	LockReason string `gorm:"default:''"`

	TotalCommissionEarned int64 `gorm:"not null;default:0"`

	TokenVersion int `gorm:"default:1"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	// Balance always starts at zero, whatever the caller set.
	a.Balance = 0
	return nil
}

// EligibleAgent reports whether the account may accept or be matched to
// withdrawal requests.
func (a *Account) EligibleAgent() bool {
	return a.IsAgent && a.IsAvailable && !a.IsLocked
}
