package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vantorrr/yauberu-backend/pkg/enums"
)

// Subscription is a prepaid package of recurring pickups.
//
// TotalCredits is the package size, UsedCredits grows monotonically as
// occurrences materialize (it may start at 1 when the purchase flow creates
// the first order immediately). IsActive must be false whenever
// UsedCredits >= TotalCredits; refunds may flip it back.
type Subscription struct {
	ID        uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID    `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID uuid.UUID    `gorm:"column:address_id;type:uuid;not null"`
	Tariff    enums.Tariff `gorm:"column:tariff;not null"`

	TotalCredits int `gorm:"column:total_credits;not null"`
	UsedCredits  int `gorm:"column:used_credits;not null;default:0"`

	// ScheduleDays holds ISO weekday numbers as "1,3,5"; only consulted for
	// the specific_weekdays frequency.
	ScheduleDays    string          `gorm:"column:schedule_days"`
	DefaultTimeSlot *enums.TimeSlot `gorm:"column:default_time_slot"`

	StartDate *time.Time      `gorm:"column:start_date;type:date"`
	EndDate   *time.Time      `gorm:"column:end_date;type:date"`
	Frequency enums.Frequency `gorm:"column:frequency"`

	IsActive bool `gorm:"column:is_active;not null"`

	// LastGeneratedDate is the most recent date the daily driver handled for
	// this subscription, set whether or not an order came out of it.
	LastGeneratedDate *time.Time `gorm:"column:last_generated_date;type:date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// RemainingCredits reports how many occurrences the package can still fund.
func (s Subscription) RemainingCredits() int {
	remaining := s.TotalCredits - s.UsedCredits
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted reports whether the package has no credits left.
func (s Subscription) Exhausted() bool {
	return s.UsedCredits >= s.TotalCredits
}
