package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a pickup location inside a residential complex.
type Address struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	ComplexID *uuid.UUID `gorm:"column:complex_id;type:uuid;index"`
	Street    *string    `gorm:"column:street"`
	Building  string     `gorm:"column:building;not null"`
	Entrance  *string    `gorm:"column:entrance"`
	Floor     *string    `gorm:"column:floor"`
	Apartment string     `gorm:"column:apartment;not null"`
	Intercom  *string    `gorm:"column:intercom"`
	IsDefault bool       `gorm:"column:is_default;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// ResidentialComplex groups buildings serviced by the courier pool.
type ResidentialComplex struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	ShortName *string   `gorm:"column:short_name"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
