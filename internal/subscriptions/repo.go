package subscriptions

import (
	"context"
	"time"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for recurring pickup subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	ListEligible(ctx context.Context) ([]models.Subscription, error)
	UpdateCredits(ctx context.Context, id uuid.UUID, usedCredits int, isActive bool) error
	SetLastGeneratedDate(ctx context.Context, id uuid.UUID, date time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListEligible returns active subscriptions that still have credits left.
// Window checks happen in the recurrence calculator, not here.
func (r *repository) ListEligible(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("used_credits < total_credits").
		Order("created_at ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) UpdateCredits(ctx context.Context, id uuid.UUID, usedCredits int, isActive bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"used_credits": usedCredits,
			"is_active":    isActive,
		}).Error
}

func (r *repository) SetLastGeneratedDate(ctx context.Context, id uuid.UUID, date time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("last_generated_date", date).Error
}
