package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Vantorrr/yauberu-backend/pkg/enums"
)

// TariffPrice is an admin-editable price row for one tariff.
type TariffPrice struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TariffID    enums.Tariff     `gorm:"column:tariff_id;not null;uniqueIndex"`
	Name        string           `gorm:"column:name;not null"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	OldPrice    *decimal.Decimal `gorm:"column:old_price;type:numeric(10,2)"`
	Period      *string          `gorm:"column:period"`
	Description string           `gorm:"column:description;not null"`
	IsActive    bool             `gorm:"column:is_active;not null"`
	IsUrgent    bool             `gorm:"column:is_urgent;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
