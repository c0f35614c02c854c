package ledger

import (
	"context"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for balances and their transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Balance, error)
	GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Balance, error)
	Create(ctx context.Context, balance *models.Balance) error
	UpdateCredits(ctx context.Context, balanceID uuid.UUID, credits, singleCredits int) error
	CreateTransaction(ctx context.Context, txn *models.BalanceTransaction) error
	ListTransactions(ctx context.Context, balanceID uuid.UUID) ([]models.BalanceTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	var balance models.Balance
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetByUserIDForUpdate locks the balance row for the duration of the
// surrounding transaction so concurrent debits serialize.
func (r *repository) GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	var balance models.Balance
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) Create(ctx context.Context, balance *models.Balance) error {
	return r.db.WithContext(ctx).Create(balance).Error
}

func (r *repository) UpdateCredits(ctx context.Context, balanceID uuid.UUID, credits, singleCredits int) error {
	return r.db.WithContext(ctx).
		Model(&models.Balance{}).
		Where("id = ?", balanceID).
		Updates(map[string]any{
			"credits":        credits,
			"single_credits": singleCredits,
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.BalanceTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, balanceID uuid.UUID) ([]models.BalanceTransaction, error) {
	var txns []models.BalanceTransaction
	if err := r.db.WithContext(ctx).
		Where("balance_id = ?", balanceID).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
