package payments

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Vantorrr/yauberu-backend/internal/generator"
	"github.com/Vantorrr/yauberu-backend/internal/ledger"
	"github.com/Vantorrr/yauberu-backend/internal/subscriptions"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePaymentRepo struct {
	payments map[string]*models.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*models.Payment{}}
}

func (f *fakePaymentRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	copied := *payment
	f.payments[payment.ProviderPaymentID] = &copied
	return nil
}

func (f *fakePaymentRepo) GetByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	payment, ok := f.payments[providerPaymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *payment
	return &copied, nil
}

func (f *fakePaymentRepo) GetByProviderIDForUpdate(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	return f.GetByProviderID(ctx, providerPaymentID)
}

func (f *fakePaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	for _, payment := range f.payments {
		if payment.ID == id {
			payment.Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeGranter struct {
	topUps []ledger.TopUpInput
}

func (f *fakeGranter) TopUp(ctx context.Context, tx *gorm.DB, input ledger.TopUpInput) (*models.Balance, error) {
	f.topUps = append(f.topUps, input)
	return &models.Balance{UserID: input.UserID, Credits: input.Credits, SingleCredits: input.SingleCredits}, nil
}

type fakeSubCreator struct {
	created []*models.Subscription
}

func (f *fakeSubCreator) CreateFromPurchase(ctx context.Context, tx *gorm.DB, input subscriptions.CreateFromPurchaseInput) (*models.Subscription, error) {
	terms, ok := subscriptions.TermsFor(input.Tariff)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "not a subscription tariff")
	}
	end := input.StartDate.AddDate(0, 0, terms.WindowDays)
	sub := &models.Subscription{
		ID:           uuid.New(),
		UserID:       input.UserID,
		AddressID:    input.AddressID,
		Tariff:       input.Tariff,
		TotalCredits: terms.Credits,
		StartDate:    &input.StartDate,
		EndDate:      &end,
		IsActive:     true,
	}
	f.created = append(f.created, sub)
	return sub, nil
}

type fakeOrderWriter struct {
	orders []*models.Order
}

func (f *fakeOrderWriter) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	order.ID = uuid.New()
	f.orders = append(f.orders, order)
	return nil
}

type fakeBulkRunner struct {
	runs       []uuid.UUID
	startFroms []*time.Time
	result     generator.Result
}

func (f *fakeBulkRunner) RunBulk(ctx context.Context, subscriptionID uuid.UUID, startFrom *time.Time) (generator.Result, error) {
	f.runs = append(f.runs, subscriptionID)
	f.startFroms = append(f.startFroms, startFrom)
	return f.result, nil
}

// fakeOccurrenceWriter mimics the materializer: it mints the start-date
// order without consulting the recurring schedule.
type fakeOccurrenceWriter struct {
	orders []*models.Order
}

func (f *fakeOccurrenceWriter) MaterializeInTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, date time.Time) (*models.Order, error) {
	order := &models.Order{
		ID:             uuid.New(),
		UserID:         sub.UserID,
		AddressID:      sub.AddressID,
		Date:           date,
		Status:         enums.OrderStatusScheduled,
		IsSubscription: true,
		SubscriptionID: &sub.ID,
	}
	f.orders = append(f.orders, order)
	return order, nil
}

type fakeAnnouncer struct {
	courierAlerts []uuid.UUID
	clientAlerts  []uuid.UUID
	adminAlerts   []uuid.UUID
}

func (f *fakeAnnouncer) OrderCreated(ctx context.Context, order *models.Order) {
	f.courierAlerts = append(f.courierAlerts, order.ID)
}

func (f *fakeAnnouncer) ClientOrderConfirmed(ctx context.Context, order *models.Order) {
	f.clientAlerts = append(f.clientAlerts, order.ID)
}

func (f *fakeAnnouncer) AdminNewOrder(ctx context.Context, order *models.Order) {
	f.adminAlerts = append(f.adminAlerts, order.ID)
}

type paymentFixture struct {
	svc      Service
	repo     *fakePaymentRepo
	ledger   *fakeGranter
	subs     *fakeSubCreator
	orders   *fakeOrderWriter
	occs     *fakeOccurrenceWriter
	bulk     *fakeBulkRunner
	notifier *fakeAnnouncer
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	fixture := &paymentFixture{
		repo:     newFakePaymentRepo(),
		ledger:   &fakeGranter{},
		subs:     &fakeSubCreator{},
		orders:   &fakeOrderWriter{},
		occs:     &fakeOccurrenceWriter{},
		bulk:     &fakeBulkRunner{result: generator.Result{Generated: 8}},
		notifier: &fakeAnnouncer{},
	}
	svc, err := NewService(ServiceParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		DB:            &fakeTxRunner{},
		Repo:          fixture.repo,
		Ledger:        fixture.ledger,
		Subscriptions: fixture.subs,
		Orders:        fixture.orders,
		Materializer:  fixture.occs,
		Generator:     fixture.bulk,
		Notifier:      fixture.notifier,
	})
	require.NoError(t, err)
	fixture.svc = svc
	return fixture
}

func pendingPayment(t *testing.T, fixture *paymentFixture, tariff enums.Tariff, request OrderRequest) *models.Payment {
	t.Helper()

	payment, err := fixture.svc.CreatePending(context.Background(), CreatePendingInput{
		UserID:            uuid.New(),
		ProviderPaymentID: "pay_" + uuid.NewString(),
		Amount:            decimal.NewFromInt(990),
		Tariff:            tariff,
		Description:       string(tariff) + " tariff",
		Order:             request,
	})
	require.NoError(t, err)
	return payment
}

func TestCreatePendingStoresOrderData(t *testing.T) {
	fixture := newPaymentFixture(t)

	request := OrderRequest{
		AddressID:    uuid.New(),
		Date:         "2026-03-10",
		TimeSlot:     "16:00-18:00",
		Frequency:    "specific_weekdays",
		ScheduleDays: "1,4",
	}
	payment := pendingPayment(t, fixture, enums.TariffMonthly, request)

	assert.Equal(t, enums.PaymentStatusPending, payment.Status)

	var decoded OrderRequest
	require.NoError(t, json.Unmarshal(payment.OrderData, &decoded))
	assert.Equal(t, request, decoded)
}

func TestCreatePendingValidation(t *testing.T) {
	fixture := newPaymentFixture(t)

	_, err := fixture.svc.CreatePending(context.Background(), CreatePendingInput{
		UserID:            uuid.New(),
		ProviderPaymentID: "pay_1",
		Tariff:            enums.TariffMonthly,
		Order:             OrderRequest{AddressID: uuid.New(), Date: "10.03.2026"},
	})
	assert.Error(t, err, "dates are ISO formatted")

	_, err = fixture.svc.CreatePending(context.Background(), CreatePendingInput{
		UserID:            uuid.New(),
		ProviderPaymentID: "pay_2",
		Tariff:            enums.Tariff("yearly"),
		Order:             OrderRequest{AddressID: uuid.New(), Date: "2026-03-10"},
	})
	assert.Error(t, err)
}

func TestProcessSucceededSubscriptionPurchase(t *testing.T) {
	fixture := newPaymentFixture(t)

	payment := pendingPayment(t, fixture, enums.TariffMonthly, OrderRequest{
		AddressID: uuid.New(),
		Date:      "2026-03-10",
		TimeSlot:  "12:00-14:00",
	})

	result, err := fixture.svc.ProcessSucceeded(context.Background(), payment.ProviderPaymentID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyDone)

	require.NotNil(t, result.Subscription)
	assert.Equal(t, 15, result.Subscription.TotalCredits)

	require.NotNil(t, result.FirstOrder, "the paid start date becomes an order at settlement")
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), result.FirstOrder.Date)
	require.NotNil(t, result.FirstOrder.SubscriptionID)
	assert.Equal(t, result.Subscription.ID, *result.FirstOrder.SubscriptionID)
	require.Len(t, fixture.occs.orders, 1)

	require.Len(t, fixture.ledger.topUps, 1)
	assert.Equal(t, 15, fixture.ledger.topUps[0].Credits)
	assert.Equal(t, 0, fixture.ledger.topUps[0].SingleCredits)

	require.Len(t, fixture.bulk.runs, 1)
	assert.Equal(t, result.Subscription.ID, fixture.bulk.runs[0])
	require.NotNil(t, fixture.bulk.startFroms[0], "bulk generation resumes after the first order")
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), *fixture.bulk.startFroms[0])
	assert.Equal(t, 8, result.Generated)

	assert.Equal(t, []uuid.UUID{result.FirstOrder.ID}, fixture.notifier.courierAlerts)
	assert.Equal(t, []uuid.UUID{result.FirstOrder.ID}, fixture.notifier.clientAlerts)
	assert.Equal(t, []uuid.UUID{result.FirstOrder.ID}, fixture.notifier.adminAlerts)

	stored, err := fixture.repo.GetByProviderID(context.Background(), payment.ProviderPaymentID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, stored.Status)
}

func TestProcessSucceededSinglePurchase(t *testing.T) {
	fixture := newPaymentFixture(t)

	addressID := uuid.New()
	payment := pendingPayment(t, fixture, enums.TariffSingle, OrderRequest{
		AddressID: addressID,
		Date:      "2026-03-12",
		Comment:   "gate code 4501",
	})

	result, err := fixture.svc.ProcessSucceeded(context.Background(), payment.ProviderPaymentID)
	require.NoError(t, err)

	assert.Nil(t, result.Subscription)
	require.NotNil(t, result.FirstOrder)
	assert.Equal(t, addressID, result.FirstOrder.AddressID)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), result.FirstOrder.Date)
	assert.Equal(t, enums.TimeSlotMorning, result.FirstOrder.TimeSlot)
	assert.False(t, result.FirstOrder.IsSubscription)
	require.NotNil(t, result.FirstOrder.Comment)

	require.Len(t, fixture.ledger.topUps, 1)
	assert.Equal(t, 1, fixture.ledger.topUps[0].SingleCredits)
	assert.Empty(t, fixture.bulk.runs, "single pickups have no schedule to generate")

	assert.Equal(t, []uuid.UUID{result.FirstOrder.ID}, fixture.notifier.courierAlerts)
	assert.Equal(t, []uuid.UUID{result.FirstOrder.ID}, fixture.notifier.clientAlerts)
	assert.Equal(t, []uuid.UUID{result.FirstOrder.ID}, fixture.notifier.adminAlerts)
}

func TestProcessSucceededKeepsOffScheduleStartDate(t *testing.T) {
	fixture := newPaymentFixture(t)

	// 2026-03-10 is a Tuesday; the weekday schedule below excludes it.
	payment := pendingPayment(t, fixture, enums.TariffMonthly, OrderRequest{
		AddressID:    uuid.New(),
		Date:         "2026-03-10",
		Frequency:    "specific_weekdays",
		ScheduleDays: "1,4",
	})

	result, err := fixture.svc.ProcessSucceeded(context.Background(), payment.ProviderPaymentID)
	require.NoError(t, err)

	require.NotNil(t, result.FirstOrder, "the date picked at checkout is honored even off schedule")
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), result.FirstOrder.Date)
}

func TestProcessSucceededIsIdempotent(t *testing.T) {
	fixture := newPaymentFixture(t)

	payment := pendingPayment(t, fixture, enums.TariffTrial, OrderRequest{
		AddressID: uuid.New(),
		Date:      "2026-03-10",
	})

	first, err := fixture.svc.ProcessSucceeded(context.Background(), payment.ProviderPaymentID)
	require.NoError(t, err)
	require.False(t, first.AlreadyDone)

	second, err := fixture.svc.ProcessSucceeded(context.Background(), payment.ProviderPaymentID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyDone, "a duplicate webhook delivery must not grant credits twice")

	assert.Len(t, fixture.ledger.topUps, 1)
	assert.Len(t, fixture.subs.created, 1)
	assert.Len(t, fixture.bulk.runs, 1)
}

func TestProcessSucceededUnknownPayment(t *testing.T) {
	fixture := newPaymentFixture(t)

	_, err := fixture.svc.ProcessSucceeded(context.Background(), "pay_missing")
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestProcessCanceled(t *testing.T) {
	fixture := newPaymentFixture(t)

	payment := pendingPayment(t, fixture, enums.TariffMonthly, OrderRequest{
		AddressID: uuid.New(),
		Date:      "2026-03-10",
	})

	require.NoError(t, fixture.svc.ProcessCanceled(context.Background(), payment.ProviderPaymentID))

	stored, err := fixture.repo.GetByProviderID(context.Background(), payment.ProviderPaymentID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCanceled, stored.Status)

	_, err = fixture.svc.ProcessSucceeded(context.Background(), payment.ProviderPaymentID)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

type fakePriceReader struct {
	prices map[enums.Tariff]decimal.Decimal
}

func (f *fakePriceReader) ActivePrice(ctx context.Context, tariff enums.Tariff) (*models.TariffPrice, error) {
	price, ok := f.prices[tariff]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.TariffPrice{TariffID: tariff, Price: price, IsActive: true}, nil
}

func newPricedFixture(t *testing.T, prices map[enums.Tariff]decimal.Decimal) *paymentFixture {
	t.Helper()

	fixture := &paymentFixture{
		repo:   newFakePaymentRepo(),
		ledger: &fakeGranter{},
		subs:   &fakeSubCreator{},
		orders: &fakeOrderWriter{},
		occs:   &fakeOccurrenceWriter{},
		bulk:   &fakeBulkRunner{},
	}
	svc, err := NewService(ServiceParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		DB:            &fakeTxRunner{},
		Repo:          fixture.repo,
		Ledger:        fixture.ledger,
		Subscriptions: fixture.subs,
		Orders:        fixture.orders,
		Materializer:  fixture.occs,
		Generator:     fixture.bulk,
		Prices:        &fakePriceReader{prices: prices},
	})
	require.NoError(t, err)
	fixture.svc = svc
	return fixture
}

func TestCreatePendingDefaultsAmountFromPriceList(t *testing.T) {
	listed := decimal.NewFromInt(1890)
	fixture := newPricedFixture(t, map[enums.Tariff]decimal.Decimal{enums.TariffMonthly: listed})

	payment, err := fixture.svc.CreatePending(context.Background(), CreatePendingInput{
		UserID:            uuid.New(),
		ProviderPaymentID: "pay_listed",
		Tariff:            enums.TariffMonthly,
		Order:             OrderRequest{AddressID: uuid.New(), Date: "2026-03-10"},
	})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(listed), "zero amount takes the listed price")
}

func TestCreatePendingRejectsAmountMismatch(t *testing.T) {
	fixture := newPricedFixture(t, map[enums.Tariff]decimal.Decimal{
		enums.TariffMonthly: decimal.NewFromInt(1890),
	})

	_, err := fixture.svc.CreatePending(context.Background(), CreatePendingInput{
		UserID:            uuid.New(),
		ProviderPaymentID: "pay_mismatch",
		Amount:            decimal.NewFromInt(100),
		Tariff:            enums.TariffMonthly,
		Order:             OrderRequest{AddressID: uuid.New(), Date: "2026-03-10"},
	})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestCreatePendingUnlistedTariffKeepsCheckoutAmount(t *testing.T) {
	fixture := newPricedFixture(t, nil)

	payment, err := fixture.svc.CreatePending(context.Background(), CreatePendingInput{
		UserID:            uuid.New(),
		ProviderPaymentID: "pay_unlisted",
		Amount:            decimal.NewFromInt(250),
		Tariff:            enums.TariffSingle,
		Order:             OrderRequest{AddressID: uuid.New(), Date: "2026-03-10"},
	})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(250)))
}
