package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vantorrr/yauberu-backend/internal/ledger"
	"github.com/Vantorrr/yauberu-backend/internal/recurrence"
	"github.com/Vantorrr/yauberu-backend/pkg/db"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// occurrenceConstraint is the partial unique index guarding one live order
// per (subscription, date).
const occurrenceConstraint = "uq_orders_subscription_occurrence"

const defaultBagsCount = 1

var errSlotTaken = errors.New("occurrence already materialized")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type creditDebiter interface {
	DebitSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription, orderID uuid.UUID, description string) error
}

// Materializer turns one due occurrence into a persisted order plus its
// credit debit. The insert and the debit commit together or not at all.
type Materializer struct {
	logg   *logger.Logger
	db     txRunner
	repo   Repository
	ledger creditDebiter
}

// MaterializerParams configures occurrence materialization.
type MaterializerParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   Repository
	Ledger creditDebiter
}

// NewMaterializer constructs a Materializer.
func NewMaterializer(params MaterializerParams) (*Materializer, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &Materializer{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repo,
		ledger: params.Ledger,
	}, nil
}

// Materialize creates the order for one (subscription, date) occurrence.
// A nil order with a nil error means the occurrence was skipped: the slot is
// already taken, the subscription is out of credits, or the client cannot
// fund the pickup. No order row is left behind in any of those cases.
func (m *Materializer) Materialize(ctx context.Context, sub *models.Subscription, date time.Time) (*models.Order, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if sub.Exhausted() {
		return nil, nil
	}

	var order *models.Order
	err := m.db.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := m.insertAndDebit(ctx, tx, sub, date)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	return m.resolve(ctx, sub, date, order, err)
}

// MaterializeInTx creates the occurrence inside the caller's transaction,
// for flows that must commit an order together with other writes, such as
// payment settlement. Skips are reported the same way Materialize reports
// them.
func (m *Materializer) MaterializeInTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, date time.Time) (*models.Order, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if sub.Exhausted() {
		return nil, nil
	}
	order, err := m.insertAndDebit(ctx, tx, sub, date)
	return m.resolve(ctx, sub, date, order, err)
}

func (m *Materializer) insertAndDebit(ctx context.Context, tx *gorm.DB, sub *models.Subscription, date time.Time) (*models.Order, error) {
	repo := m.repo.WithTx(tx)
	day := recurrence.DateOnly(date)

	exists, err := repo.ExistsForOccurrence(ctx, sub.ID, day)
	if err != nil {
		return nil, fmt.Errorf("check occurrence: %w", err)
	}
	if exists {
		return nil, errSlotTaken
	}

	slot := enums.TimeSlotMorning
	if sub.DefaultTimeSlot != nil {
		slot = *sub.DefaultTimeSlot
	}
	comment := "Scheduled by subscription"
	candidate := &models.Order{
		UserID:         sub.UserID,
		AddressID:      sub.AddressID,
		Date:           day,
		TimeSlot:       slot,
		Status:         enums.OrderStatusScheduled,
		BagsCount:      defaultBagsCount,
		IsSubscription: true,
		SubscriptionID: &sub.ID,
		Comment:        &comment,
	}
	if err := repo.Create(ctx, candidate); err != nil {
		// A concurrent run won the slot between the check and the
		// insert. The index treats that as the same occurrence.
		if db.IsUniqueViolation(err, occurrenceConstraint) {
			return nil, errSlotTaken
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	description := fmt.Sprintf("Subscription pickup %s", day.Format("2006-01-02"))
	if err := m.ledger.DebitSubscription(ctx, tx, sub, candidate.ID, description); err != nil {
		return nil, err
	}
	return candidate, nil
}

func (m *Materializer) resolve(ctx context.Context, sub *models.Subscription, date time.Time, order *models.Order, err error) (*models.Order, error) {
	logCtx := m.logg.WithSubscriptionID(ctx, sub.ID.String())
	switch {
	case err == nil:
		m.logg.Info(m.logg.WithOrderID(logCtx, order.ID.String()), "occurrence materialized")
		return order, nil
	case errors.Is(err, errSlotTaken):
		return nil, nil
	case errors.Is(err, ledger.ErrInsufficientCredits), errors.Is(err, ledger.ErrNoBalance):
		m.logg.Warn(m.logg.WithFields(logCtx, map[string]any{
			"date":   recurrence.DateOnly(date).Format("2006-01-02"),
			"reason": err.Error(),
		}), "occurrence skipped, pickup not funded")
		return nil, nil
	default:
		return nil, err
	}
}
