package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNoBalance signals that the client has no balance row to debit.
	ErrNoBalance = errors.New("balance not found")
	// ErrInsufficientCredits signals that the requested debit would take a
	// credit pool below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// subscriptionWriter persists credit-usage changes on a subscription row
// inside the caller's transaction.
type subscriptionWriter interface {
	UpdateCredits(ctx context.Context, tx *gorm.DB, id uuid.UUID, usedCredits int, isActive bool) error
}

// Service mutates credit balances. Every mutation appends a balance
// transaction so the audit log reconciles to the live counters. All methods
// run inside the transaction handle the caller provides; the caller owns
// commit and rollback.
type Service interface {
	DebitSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription, orderID uuid.UUID, description string) error
	RefundSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription, orderID uuid.UUID, description string) error
	DebitSingle(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, description string) error
	RefundSingle(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, description string) error
	TopUp(ctx context.Context, tx *gorm.DB, input TopUpInput) (*models.Balance, error)
	BalanceFor(ctx context.Context, userID uuid.UUID) (*models.Balance, error)
}

type service struct {
	repo          Repository
	subscriptions subscriptionWriter
}

// ServiceParams lists the dependencies a ledger service needs.
type ServiceParams struct {
	Repo          Repository
	Subscriptions subscriptionWriter
}

// TopUpInput captures a purchase-driven credit grant.
type TopUpInput struct {
	UserID        uuid.UUID
	Credits       int
	SingleCredits int
	Description   string
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription writer required")
	}
	return &service{repo: params.Repo, subscriptions: params.Subscriptions}, nil
}

// DebitSubscription takes one subscription credit for the given order. The
// balance row is locked first so concurrent debits for the same client
// serialize; the last credit deactivates the subscription.
func (s *service) DebitSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription, orderID uuid.UUID, description string) error {
	if sub == nil {
		return fmt.Errorf("subscription required")
	}
	repo := s.repo.WithTx(tx)

	balance, err := repo.GetByUserIDForUpdate(ctx, sub.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoBalance
		}
		return fmt.Errorf("lock balance: %w", err)
	}
	if balance.Credits <= 0 {
		return ErrInsufficientCredits
	}

	balance.Credits--
	if err := repo.UpdateCredits(ctx, balance.ID, balance.Credits, balance.SingleCredits); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if err := repo.CreateTransaction(ctx, &models.BalanceTransaction{
		BalanceID:   balance.ID,
		Amount:      -1,
		Description: description,
		OrderID:     &orderID,
	}); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	sub.UsedCredits++
	if sub.Exhausted() {
		sub.IsActive = false
	}
	if err := s.subscriptions.UpdateCredits(ctx, tx, sub.ID, sub.UsedCredits, sub.IsActive); err != nil {
		return fmt.Errorf("update subscription credits: %w", err)
	}
	return nil
}

// RefundSubscription returns one credit after an order is cancelled. A
// subscription that went inactive through exhaustion comes back once it is
// under budget again.
func (s *service) RefundSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription, orderID uuid.UUID, description string) error {
	if sub == nil {
		return fmt.Errorf("subscription required")
	}
	repo := s.repo.WithTx(tx)

	balance, err := s.lockOrCreate(ctx, repo, sub.UserID)
	if err != nil {
		return err
	}

	balance.Credits++
	if err := repo.UpdateCredits(ctx, balance.ID, balance.Credits, balance.SingleCredits); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if err := repo.CreateTransaction(ctx, &models.BalanceTransaction{
		BalanceID:   balance.ID,
		Amount:      1,
		Description: description,
		OrderID:     &orderID,
	}); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	if sub.UsedCredits > 0 {
		sub.UsedCredits--
	}
	if !sub.IsActive && !sub.Exhausted() {
		sub.IsActive = true
	}
	if err := s.subscriptions.UpdateCredits(ctx, tx, sub.ID, sub.UsedCredits, sub.IsActive); err != nil {
		return fmt.Errorf("update subscription credits: %w", err)
	}
	return nil
}

// DebitSingle takes one ad-hoc pickup credit. The single pool never funds
// subscription occurrences.
func (s *service) DebitSingle(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, description string) error {
	repo := s.repo.WithTx(tx)

	balance, err := repo.GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoBalance
		}
		return fmt.Errorf("lock balance: %w", err)
	}
	if balance.SingleCredits <= 0 {
		return ErrInsufficientCredits
	}

	balance.SingleCredits--
	if err := repo.UpdateCredits(ctx, balance.ID, balance.Credits, balance.SingleCredits); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if err := repo.CreateTransaction(ctx, &models.BalanceTransaction{
		BalanceID:   balance.ID,
		Amount:      -1,
		Description: description,
		OrderID:     &orderID,
	}); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// RefundSingle returns one ad-hoc pickup credit.
func (s *service) RefundSingle(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, description string) error {
	repo := s.repo.WithTx(tx)

	balance, err := s.lockOrCreate(ctx, repo, userID)
	if err != nil {
		return err
	}

	balance.SingleCredits++
	if err := repo.UpdateCredits(ctx, balance.ID, balance.Credits, balance.SingleCredits); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return repo.CreateTransaction(ctx, &models.BalanceTransaction{
		BalanceID:   balance.ID,
		Amount:      1,
		Description: description,
		OrderID:     &orderID,
	})
}

// TopUp grants purchased credits, creating the balance row on first
// purchase.
func (s *service) TopUp(ctx context.Context, tx *gorm.DB, input TopUpInput) (*models.Balance, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if input.Credits < 0 || input.SingleCredits < 0 {
		return nil, fmt.Errorf("top-up amounts must not be negative")
	}
	if input.Credits == 0 && input.SingleCredits == 0 {
		return nil, fmt.Errorf("top-up requires a positive amount")
	}
	repo := s.repo.WithTx(tx)

	balance, err := s.lockOrCreate(ctx, repo, input.UserID)
	if err != nil {
		return nil, err
	}

	balance.Credits += input.Credits
	balance.SingleCredits += input.SingleCredits
	if err := repo.UpdateCredits(ctx, balance.ID, balance.Credits, balance.SingleCredits); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	if err := repo.CreateTransaction(ctx, &models.BalanceTransaction{
		BalanceID:   balance.ID,
		Amount:      input.Credits + input.SingleCredits,
		Description: input.Description,
	}); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}
	return balance, nil
}

func (s *service) BalanceFor(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	balance, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoBalance
		}
		return nil, err
	}
	return balance, nil
}

func (s *service) lockOrCreate(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Balance, error) {
	balance, err := repo.GetByUserIDForUpdate(ctx, userID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lock balance: %w", err)
	}
	balance = &models.Balance{UserID: userID}
	if err := repo.Create(ctx, balance); err != nil {
		return nil, fmt.Errorf("create balance: %w", err)
	}
	return balance, nil
}
