package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vantorrr/yauberu-backend/pkg/enums"
)

// User is a client, courier, or admin account authenticated via Telegram.
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TelegramID int64          `gorm:"column:telegram_id;not null;uniqueIndex"`
	Phone      *string        `gorm:"column:phone;uniqueIndex"`
	Name       string         `gorm:"column:name"`
	Role       enums.UserRole `gorm:"column:role;not null;default:'client'"`
	IsActive   bool           `gorm:"column:is_active;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
