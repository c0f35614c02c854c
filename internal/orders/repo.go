package orders

import (
	"context"
	"time"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ComplexSummary counts a complex's pickups still open for the day.
type ComplexSummary struct {
	ComplexID uuid.UUID `gorm:"column:complex_id"`
	Name      string    `gorm:"column:name"`
	Orders    int       `gorm:"column:orders"`
}

// BuildingSummary counts a building's pickups still open for the day.
type BuildingSummary struct {
	Building string `gorm:"column:building"`
	Orders   int    `gorm:"column:orders"`
}

// Repository manages persistence for pickup orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ExistsForOccurrence(ctx context.Context, subscriptionID uuid.UUID, date time.Time) (bool, error)
	ListOccurrenceDates(ctx context.Context, subscriptionID uuid.UUID) ([]time.Time, error)
	ListByUserID(ctx context.Context, query historyQuery) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	AssignCourier(ctx context.Context, id uuid.UUID, courierID *uuid.UUID, status enums.OrderStatus) error
	Complete(ctx context.Context, id uuid.UUID, bagsCount int, photoURL *string) error
	ListComplexSummaries(ctx context.Context, date time.Time) ([]ComplexSummary, error)
	ListBuildingSummaries(ctx context.Context, complexID uuid.UUID, date time.Time) ([]BuildingSummary, error)
	ListForCourier(ctx context.Context, complexID uuid.UUID, building string, date time.Time) ([]models.Order, error)
}

// openStatuses are the states a courier still has work in.
var openStatuses = []enums.OrderStatus{enums.OrderStatusScheduled, enums.OrderStatusInProgress}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ExistsForOccurrence reports whether the occurrence slot is already taken.
// Cancelled orders free their slot, so they do not count.
func (r *repository) ExistsForOccurrence(ctx context.Context, subscriptionID uuid.UUID, date time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("subscription_id = ?", subscriptionID).
		Where("date = ?", date).
		Where("status <> ?", enums.OrderStatusCancelled).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListOccurrenceDates returns the dates this subscription already holds a
// non-cancelled order for.
func (r *repository) ListOccurrenceDates(ctx context.Context, subscriptionID uuid.UUID) ([]time.Time, error) {
	var dates []time.Time
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("subscription_id = ?", subscriptionID).
		Where("status <> ?", enums.OrderStatusCancelled).
		Order("date ASC").
		Pluck("date", &dates).Error; err != nil {
		return nil, err
	}
	return dates, nil
}

func (r *repository) ListByUserID(ctx context.Context, query historyQuery) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", query.userID)
	if query.cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			query.cursor.CreatedAt, query.cursor.CreatedAt, query.cursor.ID)
	}

	var list []models.Order
	if err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(query.limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) AssignCourier(ctx context.Context, id uuid.UUID, courierID *uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"courier_id": courierID,
			"status":     status,
		}).Error
}

func (r *repository) Complete(ctx context.Context, id uuid.UUID, bagsCount int, photoURL *string) error {
	updates := map[string]any{
		"status":     enums.OrderStatusCompleted,
		"bags_count": bagsCount,
	}
	if photoURL != nil {
		updates["photo_url"] = photoURL
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListComplexSummaries(ctx context.Context, date time.Time) ([]ComplexSummary, error) {
	var summaries []ComplexSummary
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("residential_complexes.id AS complex_id, residential_complexes.name AS name, COUNT(orders.id) AS orders").
		Joins("JOIN addresses ON addresses.id = orders.address_id").
		Joins("JOIN residential_complexes ON residential_complexes.id = addresses.complex_id").
		Where("orders.date = ?", date).
		Where("orders.status IN ?", openStatuses).
		Group("residential_complexes.id, residential_complexes.name").
		Order("residential_complexes.name ASC").
		Scan(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *repository) ListBuildingSummaries(ctx context.Context, complexID uuid.UUID, date time.Time) ([]BuildingSummary, error) {
	var summaries []BuildingSummary
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("addresses.building AS building, COUNT(orders.id) AS orders").
		Joins("JOIN addresses ON addresses.id = orders.address_id").
		Where("addresses.complex_id = ?", complexID).
		Where("orders.date = ?", date).
		Where("orders.status IN ?", openStatuses).
		Group("addresses.building").
		Order("addresses.building ASC").
		Scan(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

// TxWriter adapts the repository for collaborators that create orders
// inside their own transactions.
type TxWriter struct {
	repo Repository
}

// NewTxWriter wraps an order repository.
func NewTxWriter(repo Repository) *TxWriter {
	return &TxWriter{repo: repo}
}

// Create inserts the order through the provided transaction handle.
func (w *TxWriter) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return w.repo.WithTx(tx).Create(ctx, order)
}

func (r *repository) ListForCourier(ctx context.Context, complexID uuid.UUID, building string, date time.Time) ([]models.Order, error) {
	var list []models.Order
	if err := r.db.WithContext(ctx).
		Joins("JOIN addresses ON addresses.id = orders.address_id").
		Where("addresses.complex_id = ?", complexID).
		Where("addresses.building = ?", building).
		Where("orders.date = ?", date).
		Where("orders.status IN ?", openStatuses).
		Order("orders.time_slot ASC, orders.created_at ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
