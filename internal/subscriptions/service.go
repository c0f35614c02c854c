package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/Vantorrr/yauberu-backend/internal/recurrence"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultScheduleDays is the pickup schedule applied when a purchase
	// does not name explicit weekdays: Monday, Wednesday, Friday.
	DefaultScheduleDays = "1,3,5"
	// DefaultTimeSlot is the pickup window applied when a purchase does
	// not name one.
	DefaultTimeSlot = enums.TimeSlotMorning
	// DefaultFrequency is the recurrence applied when a purchase does not
	// name one.
	DefaultFrequency = enums.FrequencyEveryOtherDay
)

// Terms describes what a subscription tariff grants.
type Terms struct {
	Credits    int
	WindowDays int
}

// TermsFor returns the credit grant and service window for a subscription
// tariff. Single pickups are not subscriptions and have no terms.
func TermsFor(tariff enums.Tariff) (Terms, bool) {
	switch tariff {
	case enums.TariffTrial:
		return Terms{Credits: 7, WindowDays: 14}, true
	case enums.TariffMonthly:
		return Terms{Credits: 15, WindowDays: 30}, true
	default:
		return Terms{}, false
	}
}

// Service manages the subscription lifecycle.
type Service interface {
	CreateFromPurchase(ctx context.Context, tx *gorm.DB, input CreateFromPurchaseInput) (*models.Subscription, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	ListEligible(ctx context.Context) ([]models.Subscription, error)
	UpdateCredits(ctx context.Context, tx *gorm.DB, id uuid.UUID, usedCredits int, isActive bool) error
	MarkGenerated(ctx context.Context, id uuid.UUID, date time.Time) error
}

type service struct {
	repo Repository
}

// CreateFromPurchaseInput captures the subscription parameters a confirmed
// purchase carries. Zero values fall back to the tariff defaults.
type CreateFromPurchaseInput struct {
	UserID       uuid.UUID
	AddressID    uuid.UUID
	Tariff       enums.Tariff
	StartDate    time.Time
	Frequency    enums.Frequency
	ScheduleDays string
	TimeSlot     *enums.TimeSlot
}

// NewService wires a subscription service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	return &service{repo: repo}, nil
}

// CreateFromPurchase opens a subscription inside the caller's transaction.
// The credit grant itself lives on the client balance; TotalCredits only
// caps how many occurrences this subscription may consume.
func (s *service) CreateFromPurchase(ctx context.Context, tx *gorm.DB, input CreateFromPurchaseInput) (*models.Subscription, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	terms, ok := TermsFor(input.Tariff)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("tariff %q is not a subscription tariff", input.Tariff))
	}
	if input.StartDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start date is required")
	}

	frequency := input.Frequency
	if frequency == "" {
		frequency = DefaultFrequency
	}
	if !frequency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown frequency %q", frequency))
	}

	scheduleDays := input.ScheduleDays
	if scheduleDays == "" {
		scheduleDays = DefaultScheduleDays
	}
	if frequency == enums.FrequencySpecificWeekdays && len(recurrence.ParseScheduleDays(scheduleDays)) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("schedule %q names no valid weekdays", scheduleDays))
	}

	slot := DefaultTimeSlot
	if input.TimeSlot != nil {
		if !input.TimeSlot.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown time slot %q", *input.TimeSlot))
		}
		slot = *input.TimeSlot
	}

	start := recurrence.DateOnly(input.StartDate)
	end := start.AddDate(0, 0, terms.WindowDays)
	sub := &models.Subscription{
		UserID:          input.UserID,
		AddressID:       input.AddressID,
		Tariff:          input.Tariff,
		TotalCredits:    terms.Credits,
		UsedCredits:     0,
		ScheduleDays:    scheduleDays,
		DefaultTimeSlot: &slot,
		StartDate:       &start,
		EndDate:         &end,
		Frequency:       frequency,
		IsActive:        true,
	}
	if err := s.repo.WithTx(tx).Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUserID(ctx, userID)
}

func (s *service) ListEligible(ctx context.Context) ([]models.Subscription, error) {
	return s.repo.ListEligible(ctx)
}

// UpdateCredits persists credit usage inside the caller's transaction. The
// ledger calls this after every debit and refund.
func (s *service) UpdateCredits(ctx context.Context, tx *gorm.DB, id uuid.UUID, usedCredits int, isActive bool) error {
	return s.repo.WithTx(tx).UpdateCredits(ctx, id, usedCredits, isActive)
}

// MarkGenerated records the most recent date the daily driver evaluated for
// this subscription.
func (s *service) MarkGenerated(ctx context.Context, id uuid.UUID, date time.Time) error {
	return s.repo.SetLastGeneratedDate(ctx, id, recurrence.DateOnly(date))
}
