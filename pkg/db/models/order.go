package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vantorrr/yauberu-backend/pkg/enums"
)

// Order is one concrete pickup task. Subscription-linked orders tie to
// exactly one occurrence via (subscription_id, date); a partial unique index
// excludes cancelled rows so a refunded slot can be regenerated.
type Order struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID uuid.UUID  `gorm:"column:address_id;type:uuid;not null"`
	CourierID *uuid.UUID `gorm:"column:courier_id;type:uuid"`

	Date     time.Time      `gorm:"column:date;type:date;not null;index"`
	TimeSlot enums.TimeSlot `gorm:"column:time_slot;not null"`

	Status enums.OrderStatus `gorm:"column:status;not null;default:'scheduled'"`

	BagsCount int     `gorm:"column:bags_count;not null;default:1"`
	PhotoURL  *string `gorm:"column:photo_url"`

	IsSubscription bool       `gorm:"column:is_subscription;not null"`
	SubscriptionID *uuid.UUID `gorm:"column:subscription_id;type:uuid;index"`

	Comment *string `gorm:"column:comment"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
