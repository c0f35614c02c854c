package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Vantorrr/yauberu-backend/internal/generator"
	"github.com/Vantorrr/yauberu-backend/internal/ledger"
	"github.com/Vantorrr/yauberu-backend/internal/recurrence"
	"github.com/Vantorrr/yauberu-backend/internal/subscriptions"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type creditGranter interface {
	TopUp(ctx context.Context, tx *gorm.DB, input ledger.TopUpInput) (*models.Balance, error)
}

type subscriptionCreator interface {
	CreateFromPurchase(ctx context.Context, tx *gorm.DB, input subscriptions.CreateFromPurchaseInput) (*models.Subscription, error)
}

type orderWriter interface {
	Create(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type bulkRunner interface {
	RunBulk(ctx context.Context, subscriptionID uuid.UUID, startFrom *time.Time) (generator.Result, error)
}

type occurrenceWriter interface {
	MaterializeInTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, date time.Time) (*models.Order, error)
}

type purchaseNotifier interface {
	OrderCreated(ctx context.Context, order *models.Order)
	ClientOrderConfirmed(ctx context.Context, order *models.Order)
	AdminNewOrder(ctx context.Context, order *models.Order)
}

type priceReader interface {
	ActivePrice(ctx context.Context, tariff enums.Tariff) (*models.TariffPrice, error)
}

// OrderRequest is the order the client configured at checkout, serialized
// into the payment row until the provider confirms.
type OrderRequest struct {
	AddressID    uuid.UUID `json:"address_id"`
	Date         string    `json:"date"`
	TimeSlot     string    `json:"time_slot,omitempty"`
	Frequency    string    `json:"frequency,omitempty"`
	ScheduleDays string    `json:"schedule_days,omitempty"`
	Comment      string    `json:"comment,omitempty"`
}

// CreatePendingInput registers a provider payment before redirecting the
// client to the checkout page.
type CreatePendingInput struct {
	UserID            uuid.UUID
	ProviderPaymentID string
	Amount            decimal.Decimal
	Tariff            enums.Tariff
	Description       string
	Order             OrderRequest
}

// ProcessResult reports what a confirmed payment produced.
type ProcessResult struct {
	Payment      *models.Payment
	Subscription *models.Subscription
	FirstOrder   *models.Order
	Generated    int
	AlreadyDone  bool
}

// Service turns provider payment events into credits, subscriptions, and
// orders. Processing a confirmation twice is a no-op.
type Service interface {
	CreatePending(ctx context.Context, input CreatePendingInput) (*models.Payment, error)
	ProcessSucceeded(ctx context.Context, providerPaymentID string) (*ProcessResult, error)
	ProcessCanceled(ctx context.Context, providerPaymentID string) error
}

// ServiceParams lists the dependencies a payment service needs.
type ServiceParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repo          Repository
	Ledger        creditGranter
	Subscriptions subscriptionCreator
	Orders        orderWriter
	Materializer  occurrenceWriter
	Generator     bulkRunner

	// Notifier is optional; settled orders go unannounced without it.
	Notifier purchaseNotifier
	// Prices is optional; without it CreatePending trusts the checkout
	// amount.
	Prices priceReader
}

type service struct {
	logg          *logger.Logger
	db            txRunner
	repo          Repository
	ledger        creditGranter
	subscriptions subscriptionCreator
	orders        orderWriter
	materializer  occurrenceWriter
	generator     bulkRunner
	notifier      purchaseNotifier
	prices        priceReader
}

// NewService wires a payment service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order writer required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("materializer required")
	}
	if params.Generator == nil {
		return nil, fmt.Errorf("generator service required")
	}
	return &service{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repo,
		ledger:        params.Ledger,
		subscriptions: params.Subscriptions,
		orders:        params.Orders,
		materializer:  params.Materializer,
		generator:     params.Generator,
		notifier:      params.Notifier,
		prices:        params.Prices,
	}, nil
}

func (s *service) CreatePending(ctx context.Context, input CreatePendingInput) (*models.Payment, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.ProviderPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider payment id is required")
	}
	if !input.Tariff.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown tariff %q", input.Tariff))
	}
	if input.Order.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	if _, err := parseOrderDate(input.Order.Date); err != nil {
		return nil, err
	}

	amount, err := s.resolveAmount(ctx, input.Tariff, input.Amount)
	if err != nil {
		return nil, err
	}

	orderData, err := json.Marshal(input.Order)
	if err != nil {
		return nil, fmt.Errorf("encode order data: %w", err)
	}
	payment := &models.Payment{
		UserID:            input.UserID,
		ProviderPaymentID: input.ProviderPaymentID,
		Amount:            amount,
		Status:            enums.PaymentStatusPending,
		Description:       input.Description,
		TariffType:        input.Tariff,
		OrderData:         orderData,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

// resolveAmount settles what the payment row records. When the tariff has a
// live price-list row, a zero amount defaults to it and a stated amount must
// match it; unlisted tariffs keep the checkout amount.
func (s *service) resolveAmount(ctx context.Context, tariff enums.Tariff, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if s.prices == nil {
		return amount, nil
	}

	price, err := s.prices.ActivePrice(ctx, tariff)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return amount, nil
		}
		return decimal.Zero, fmt.Errorf("load tariff price: %w", err)
	}
	if amount.IsZero() {
		return price.Price, nil
	}
	if !amount.Equal(price.Price) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match the tariff price").
			WithDetails(map[string]any{"expected": price.Price.String()})
	}
	return amount, nil
}

// ProcessSucceeded settles a confirmed payment: it grants the purchased
// credits, opens the subscription when the tariff has one, and creates and
// debits the first pickup inside the same transaction. The remaining
// schedule is generated after commit.
func (s *service) ProcessSucceeded(ctx context.Context, providerPaymentID string) (*ProcessResult, error) {
	if providerPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider payment id is required")
	}

	result := &ProcessResult{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.GetByProviderIDForUpdate(ctx, providerPaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return fmt.Errorf("lock payment: %w", err)
		}
		result.Payment = payment

		if payment.Status == enums.PaymentStatusSucceeded {
			result.AlreadyDone = true
			return nil
		}
		if payment.Status == enums.PaymentStatusCanceled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment was canceled")
		}

		var request OrderRequest
		if err := json.Unmarshal(payment.OrderData, &request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode order data")
		}
		startDate, err := parseOrderDate(request.Date)
		if err != nil {
			return err
		}

		if payment.TariffType.IsSubscription() {
			if err := s.settleSubscription(ctx, tx, payment, request, startDate, result); err != nil {
				return err
			}
		} else {
			if err := s.settleSingle(ctx, tx, payment, request, startDate, result); err != nil {
				return err
			}
		}

		return repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusSucceeded)
	})
	if err != nil {
		return nil, err
	}
	if result.AlreadyDone {
		return result, nil
	}

	if result.Subscription != nil {
		// The start-date order is already on the calendar, so bulk
		// generation picks up the day after it.
		var startFrom *time.Time
		if result.FirstOrder != nil {
			next := result.FirstOrder.Date.AddDate(0, 0, 1)
			startFrom = &next
		}
		generated, err := s.generator.RunBulk(ctx, result.Subscription.ID, startFrom)
		if err != nil {
			// Credits are granted and the payment is settled. Bulk
			// generation can be repeated safely, so a failure here is
			// logged rather than surfaced to the provider.
			s.logg.Error(s.logg.WithSubscriptionID(ctx, result.Subscription.ID.String()), "post-purchase generation failed", err)
		}
		result.Generated = generated.Generated
	}
	if result.FirstOrder != nil && s.notifier != nil {
		s.notifier.OrderCreated(ctx, result.FirstOrder)
		s.notifier.ClientOrderConfirmed(ctx, result.FirstOrder)
		s.notifier.AdminNewOrder(ctx, result.FirstOrder)
	}
	return result, nil
}

func (s *service) settleSubscription(ctx context.Context, tx *gorm.DB, payment *models.Payment, request OrderRequest, startDate time.Time, result *ProcessResult) error {
	terms, ok := subscriptions.TermsFor(payment.TariffType)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("tariff %q has no subscription terms", payment.TariffType))
	}

	var slot *enums.TimeSlot
	if request.TimeSlot != "" {
		parsed, err := enums.ParseTimeSlot(request.TimeSlot)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse time slot")
		}
		slot = &parsed
	}

	sub, err := s.subscriptions.CreateFromPurchase(ctx, tx, subscriptions.CreateFromPurchaseInput{
		UserID:       payment.UserID,
		AddressID:    request.AddressID,
		Tariff:       payment.TariffType,
		StartDate:    startDate,
		Frequency:    enums.Frequency(request.Frequency),
		ScheduleDays: request.ScheduleDays,
		TimeSlot:     slot,
	})
	if err != nil {
		return err
	}
	result.Subscription = sub

	if _, err := s.ledger.TopUp(ctx, tx, ledger.TopUpInput{
		UserID:      payment.UserID,
		Credits:     terms.Credits,
		Description: fmt.Sprintf("%s tariff purchase", payment.TariffType),
	}); err != nil {
		return err
	}

	// The client picked the start date at checkout, so its pickup is
	// created here even when the recurring schedule would skip that
	// weekday. It settles or fails with the payment.
	order, err := s.materializer.MaterializeInTx(ctx, tx, sub, startDate)
	if err != nil {
		return fmt.Errorf("create first order: %w", err)
	}
	result.FirstOrder = order
	return nil
}

func (s *service) settleSingle(ctx context.Context, tx *gorm.DB, payment *models.Payment, request OrderRequest, date time.Time, result *ProcessResult) error {
	if _, err := s.ledger.TopUp(ctx, tx, ledger.TopUpInput{
		UserID:        payment.UserID,
		SingleCredits: 1,
		Description:   "single pickup purchase",
	}); err != nil {
		return err
	}

	slot := enums.TimeSlotMorning
	if request.TimeSlot != "" {
		parsed, err := enums.ParseTimeSlot(request.TimeSlot)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse time slot")
		}
		slot = parsed
	}

	order := &models.Order{
		UserID:    payment.UserID,
		AddressID: request.AddressID,
		Date:      date,
		TimeSlot:  slot,
		Status:    enums.OrderStatusScheduled,
		BagsCount: 1,
	}
	if request.Comment != "" {
		order.Comment = &request.Comment
	}
	if err := s.orders.Create(ctx, tx, order); err != nil {
		return fmt.Errorf("create single order: %w", err)
	}
	result.FirstOrder = order
	return nil
}

// ProcessCanceled closes out a payment the provider rejected or the client
// abandoned. Settled payments stay settled.
func (s *service) ProcessCanceled(ctx context.Context, providerPaymentID string) error {
	if providerPaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider payment id is required")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.GetByProviderIDForUpdate(ctx, providerPaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return fmt.Errorf("lock payment: %w", err)
		}
		if payment.Status != enums.PaymentStatusPending {
			return nil
		}
		return repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusCanceled)
	})
}

func parseOrderDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "order date is required")
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse order date")
	}
	return recurrence.DateOnly(parsed), nil
}
