package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes pickup address persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an address repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetByID loads a pickup address.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var addr models.Address
	if err := r.db.WithContext(ctx).First(&addr, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}

// ListByUserID returns the client's saved addresses, default first.
func (r *Repository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var list []models.Address
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListComplexes returns the active residential complexes.
func (r *Repository) ListComplexes(ctx context.Context) ([]models.ResidentialComplex, error) {
	var list []models.ResidentialComplex
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Describe renders a human-readable pickup location for notifications.
func (r *Repository) Describe(ctx context.Context, id uuid.UUID) (string, error) {
	addr, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, 4)
	if addr.ComplexID != nil {
		var complexRow models.ResidentialComplex
		if err := r.db.WithContext(ctx).First(&complexRow, "id = ?", *addr.ComplexID).Error; err == nil {
			parts = append(parts, complexRow.Name)
		}
	}
	if addr.Street != nil && *addr.Street != "" {
		parts = append(parts, *addr.Street)
	}
	parts = append(parts, fmt.Sprintf("bldg %s", addr.Building))
	parts = append(parts, fmt.Sprintf("apt %s", addr.Apartment))
	if addr.Entrance != nil && *addr.Entrance != "" {
		parts = append(parts, fmt.Sprintf("entrance %s", *addr.Entrance))
	}
	return strings.Join(parts, ", "), nil
}
