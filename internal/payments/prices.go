package payments

import (
	"context"

	"gorm.io/gorm"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
)

// PriceRepository reads the admin-managed tariff price list.
type PriceRepository struct {
	db *gorm.DB
}

func NewPriceRepository(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// ActivePrice returns the live price row for a tariff.
func (r *PriceRepository) ActivePrice(ctx context.Context, tariff enums.Tariff) (*models.TariffPrice, error) {
	var price models.TariffPrice
	if err := r.db.WithContext(ctx).
		Where("tariff_id = ? AND is_active = ?", tariff, true).
		First(&price).Error; err != nil {
		return nil, err
	}
	return &price, nil
}
