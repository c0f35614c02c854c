package models

import (
	"time"

	"github.com/google/uuid"
)

// Balance is the live credit counter per client. Credits funds
// subscription-generated pickups; SingleCredits funds ad-hoc pickups the
// client schedules on any date. The pools never mix.
type Balance struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Credits       int       `gorm:"column:credits;not null;default:0"`
	SingleCredits int       `gorm:"column:single_credits;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BalanceTransaction is an append-only audit record. Summing a balance's
// transactions must reconcile to its current counters.
type BalanceTransaction struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BalanceID   uuid.UUID  `gorm:"column:balance_id;type:uuid;not null;index"`
	Amount      int        `gorm:"column:amount;not null"`
	Description string     `gorm:"column:description"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
