package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Vantorrr/yauberu-backend/pkg/enums"
)

// Payment mirrors a provider-side payment. OrderData keeps the serialized
// order request so the webhook can reconstruct what the client purchased.
type Payment struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ProviderPaymentID string              `gorm:"column:provider_payment_id;not null;uniqueIndex"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Status            enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Description       string              `gorm:"column:description"`
	TariffType        enums.Tariff        `gorm:"column:tariff_type;not null"`
	OrderData         json.RawMessage     `gorm:"column:order_data;type:jsonb"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
