package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vantorrr/yauberu-backend/internal/ledger"
	"github.com/Vantorrr/yauberu-backend/internal/recurrence"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/Vantorrr/yauberu-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type creditRefunder interface {
	RefundSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription, orderID uuid.UUID, description string) error
	RefundSingle(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, description string) error
	DebitSingle(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, description string) error
}

type subscriptionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
}

type cancelNotifier interface {
	OrderCancelled(ctx context.Context, order *models.Order)
}

// Service covers the order lifecycle after materialization: client
// cancellation with its credit refund, and the courier day loop.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	History(ctx context.Context, params HistoryParams) (*HistoryPage, error)
	Cancel(ctx context.Context, orderID, actorID uuid.UUID) error
	Take(ctx context.Context, orderID, courierID uuid.UUID) error
	Complete(ctx context.Context, input CompleteInput) error
	RequestUndo(ctx context.Context, orderID, courierID uuid.UUID) error
	ResolveUndo(ctx context.Context, orderID uuid.UUID, approve bool) error
	TodayComplexes(ctx context.Context) ([]ComplexSummary, error)
	TodayBuildings(ctx context.Context, complexID uuid.UUID) ([]BuildingSummary, error)
	TodayForCourier(ctx context.Context, complexID uuid.UUID, building string) ([]models.Order, error)
}

// HistoryParams scopes a paginated history listing to one client.
type HistoryParams struct {
	UserID uuid.UUID
	pagination.Params
}

// HistoryPage is one page of a client's pickup history plus the cursor
// for the next page, empty when the history is exhausted.
type HistoryPage struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

type historyQuery struct {
	userID uuid.UUID
	limit  int
	cursor *pagination.Cursor
}

// CompleteInput captures what a courier reports when finishing a pickup.
type CompleteInput struct {
	OrderID   uuid.UUID
	CourierID uuid.UUID
	BagsCount int
	PhotoURL  *string
}

// ServiceParams lists the dependencies an order service needs.
type ServiceParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repo          Repository
	Ledger        creditRefunder
	Subscriptions subscriptionReader

	// Notifier is optional; cancellations go unannounced without it.
	Notifier cancelNotifier
	Now      func() time.Time
}

type service struct {
	logg          *logger.Logger
	db            txRunner
	repo          Repository
	ledger        creditRefunder
	subscriptions subscriptionReader
	notifier      cancelNotifier
	now           func() time.Time
}

// NewService wires an order service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
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
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription reader required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repo,
		ledger:        params.Ledger,
		subscriptions: params.Subscriptions,
		notifier:      params.Notifier,
		now:           now,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) History(ctx context.Context, params HistoryParams) (*HistoryPage, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := historyQuery{
		userID: params.UserID,
		limit:  pagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.ListByUserID(ctx, query)
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}
	return &HistoryPage{Items: rows, Cursor: nextCursor}, nil
}

// Cancel voids a scheduled pickup and returns its credit. Cancelling frees
// the occurrence slot, so a later generation run may fill the date again.
func (s *service) Cancel(ctx context.Context, orderID, actorID uuid.UUID) error {
	var cancelled *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if actorID != uuid.Nil && order.UserID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another client")
		}
		if order.Status != enums.OrderStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot cancel a %s pickup", order.Status))
		}

		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		cancelled = order

		description := fmt.Sprintf("Pickup %s cancelled", order.Date.Format("2006-01-02"))
		if order.IsSubscription && order.SubscriptionID != nil {
			sub, err := s.subscriptions.GetByID(ctx, *order.SubscriptionID)
			if err != nil {
				return fmt.Errorf("load subscription: %w", err)
			}
			return s.ledger.RefundSubscription(ctx, tx, sub, order.ID, description)
		}
		return s.ledger.RefundSingle(ctx, tx, order.UserID, order.ID, description)
	})
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.OrderCancelled(ctx, cancelled)
	}
	return nil
}

// Take assigns a pickup to the courier who claimed it.
func (s *service) Take(ctx context.Context, orderID, courierID uuid.UUID) error {
	if courierID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "courier id is required")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.Status != enums.OrderStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot take a %s pickup", order.Status))
		}
		return repo.AssignCourier(ctx, order.ID, &courierID, enums.OrderStatusInProgress)
	})
}

// Complete finishes a pickup. Ad-hoc pickups pay from the single-credit
// pool here; subscription pickups were already debited at materialization.
func (s *service) Complete(ctx context.Context, input CompleteInput) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.Status != enums.OrderStatusInProgress {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot complete a %s pickup", order.Status))
		}
		if order.CourierID != nil && input.CourierID != uuid.Nil && *order.CourierID != input.CourierID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "pickup is assigned to another courier")
		}

		bags := input.BagsCount
		if bags <= 0 {
			bags = order.BagsCount
		}
		if err := repo.Complete(ctx, order.ID, bags, input.PhotoURL); err != nil {
			return fmt.Errorf("complete order: %w", err)
		}

		if order.IsSubscription {
			return nil
		}
		description := fmt.Sprintf("Single pickup %s", order.Date.Format("2006-01-02"))
		if err := s.ledger.DebitSingle(ctx, tx, order.UserID, order.ID, description); err != nil {
			// Legacy clients completed pickups without a funded single
			// pool. Completion still counts; the gap shows up in the log.
			if errors.Is(err, ledger.ErrInsufficientCredits) || errors.Is(err, ledger.ErrNoBalance) {
				s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "single pickup completed without funding")
				return nil
			}
			return err
		}
		return nil
	})
}

// RequestUndo flags a completed pickup for dispatcher review.
func (s *service) RequestUndo(ctx context.Context, orderID, courierID uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.Status != enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot undo a %s pickup", order.Status))
		}
		if order.CourierID != nil && courierID != uuid.Nil && *order.CourierID != courierID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "pickup is assigned to another courier")
		}
		return repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPendingUndo)
	})
}

// ResolveUndo settles a pending undo. Approval puts the pickup back on the
// day list and returns the single credit taken at completion.
func (s *service) ResolveUndo(ctx context.Context, orderID uuid.UUID, approve bool) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.Status != enums.OrderStatusPendingUndo {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("no undo pending for a %s pickup", order.Status))
		}
		if !approve {
			return repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCompleted)
		}

		if err := repo.AssignCourier(ctx, order.ID, nil, enums.OrderStatusScheduled); err != nil {
			return fmt.Errorf("reopen order: %w", err)
		}
		if order.IsSubscription {
			return nil
		}
		description := fmt.Sprintf("Single pickup %s undone", order.Date.Format("2006-01-02"))
		return s.ledger.RefundSingle(ctx, tx, order.UserID, order.ID, description)
	})
}

func (s *service) TodayComplexes(ctx context.Context) ([]ComplexSummary, error) {
	return s.repo.ListComplexSummaries(ctx, s.today())
}

func (s *service) TodayBuildings(ctx context.Context, complexID uuid.UUID) ([]BuildingSummary, error) {
	if complexID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complex id is required")
	}
	return s.repo.ListBuildingSummaries(ctx, complexID, s.today())
}

func (s *service) TodayForCourier(ctx context.Context, complexID uuid.UUID, building string) ([]models.Order, error) {
	if complexID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complex id is required")
	}
	if building == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "building is required")
	}
	return s.repo.ListForCourier(ctx, complexID, building, s.today())
}

func (s *service) today() time.Time {
	return recurrence.DateOnly(s.now().UTC())
}
