package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
)

// UserDTO is the transport shape for user accounts.
type UserDTO struct {
	ID         uuid.UUID      `json:"id"`
	TelegramID int64          `json:"telegram_id"`
	Phone      *string        `json:"phone,omitempty"`
	Name       string         `json:"name"`
	Role       enums.UserRole `json:"role"`
	IsActive   bool           `json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	TelegramID int64
	Phone      *string
	Name       string
	Role       enums.UserRole
	IsActive   *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:         u.ID,
		TelegramID: u.TelegramID,
		Phone:      u.Phone,
		Name:       u.Name,
		Role:       u.Role,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	role := c.Role
	if role == "" {
		role = enums.UserRoleClient
	}

	return &models.User{
		TelegramID: c.TelegramID,
		Phone:      c.Phone,
		Name:       c.Name,
		Role:       role,
		IsActive:   isActive,
	}
}
