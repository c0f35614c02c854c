package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Vantorrr/yauberu-backend/internal/recurrence"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubSource struct {
	subs    map[uuid.UUID]*models.Subscription
	markErr error
}

func newFakeSubSource(subs ...*models.Subscription) *fakeSubSource {
	source := &fakeSubSource{subs: map[uuid.UUID]*models.Subscription{}}
	for _, sub := range subs {
		source.subs[sub.ID] = sub
	}
	return source
}

func (f *fakeSubSource) ListEligible(ctx context.Context) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.IsActive && !sub.Exhausted() {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeSubSource) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s not found", id)
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeSubSource) MarkGenerated(ctx context.Context, id uuid.UUID, date time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	if sub, ok := f.subs[id]; ok {
		marker := recurrence.DateOnly(date)
		sub.LastGeneratedDate = &marker
	}
	return nil
}

// stubMaterializer mimics the real one: occupied slots and exhausted
// subscriptions come back as silent skips, credits move on success.
type stubMaterializer struct {
	source   *fakeSubSource
	occupied map[string]struct{}
	orders   []*models.Order
	err      error
}

func newStubMaterializer(source *fakeSubSource) *stubMaterializer {
	return &stubMaterializer{source: source, occupied: map[string]struct{}{}}
}

func (m *stubMaterializer) key(subID uuid.UUID, date time.Time) string {
	return subID.String() + "|" + date.Format("2006-01-02")
}

func (m *stubMaterializer) Materialize(ctx context.Context, sub *models.Subscription, date time.Time) (*models.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	if sub.Exhausted() {
		return nil, nil
	}
	day := recurrence.DateOnly(date)
	key := m.key(sub.ID, day)
	if _, ok := m.occupied[key]; ok {
		return nil, nil
	}
	m.occupied[key] = struct{}{}

	sub.UsedCredits++
	if sub.Exhausted() {
		sub.IsActive = false
	}
	if stored, ok := m.source.subs[sub.ID]; ok {
		stored.UsedCredits = sub.UsedCredits
		stored.IsActive = sub.IsActive
	}

	order := &models.Order{
		ID:             uuid.New(),
		UserID:         sub.UserID,
		AddressID:      sub.AddressID,
		Date:           day,
		Status:         enums.OrderStatusScheduled,
		IsSubscription: true,
		SubscriptionID: &sub.ID,
	}
	m.orders = append(m.orders, order)
	return order, nil
}

func (m *stubMaterializer) ListOccurrenceDates(ctx context.Context, subscriptionID uuid.UUID) ([]time.Time, error) {
	var dates []time.Time
	for _, order := range m.orders {
		if order.SubscriptionID != nil && *order.SubscriptionID == subscriptionID &&
			order.Status != enums.OrderStatusCancelled {
			dates = append(dates, order.Date)
		}
	}
	return dates, nil
}

type fakeNotifier struct {
	created []*models.Order
}

func (f *fakeNotifier) OrderCreated(ctx context.Context, order *models.Order) {
	f.created = append(f.created, order)
}

func dailySubscription(total, used int, start time.Time, windowDays int) *models.Subscription {
	end := start.AddDate(0, 0, windowDays)
	return &models.Subscription{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		AddressID:    uuid.New(),
		Tariff:       enums.TariffMonthly,
		TotalCredits: total,
		UsedCredits:  used,
		ScheduleDays: "1,3,5",
		StartDate:    &start,
		EndDate:      &end,
		Frequency:    enums.FrequencyDaily,
		IsActive:     true,
	}
}

func newTestService(t *testing.T, source *fakeSubSource, mat *stubMaterializer, now time.Time) (Service, *fakeNotifier) {
	t.Helper()

	notif := &fakeNotifier{}
	svc, err := NewService(ServiceParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Subscriptions: source,
		Materializer:  mat,
		Orders:        mat,
		Notifier:      notif,
		Now:           func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc, notif
}

func TestRunDailyGeneratesOnceAndShortCircuits(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 30)
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	now := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	svc, notif := newTestService(t, source, mat, now)

	first, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Generated: 1}, first)
	assert.Equal(t, 1, sub.UsedCredits)
	require.NotNil(t, sub.LastGeneratedDate)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), *sub.LastGeneratedDate)
	require.Len(t, notif.created, 1)

	second, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, second, "the marker makes a same-day rerun a no-op")
	assert.Len(t, mat.orders, 1)
}

func TestRunDailyMarksNotDueDates(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 30)
	sub.Frequency = enums.FrequencyEveryOtherDay
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	// 2026-03-02 is an odd offset from the anchor, so nothing is due.
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, source, mat, now)

	result, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, result)
	assert.Empty(t, mat.orders)
	require.NotNil(t, sub.LastGeneratedDate, "the marker advances even without an occurrence")
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *sub.LastGeneratedDate)
}

func TestRunDailyUnknownFrequency(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	broken := dailySubscription(15, 0, start, 30)
	broken.Frequency = enums.Frequency("twice_week")
	healthy := dailySubscription(15, 0, start, 30)
	source := newFakeSubSource(broken, healthy)
	mat := newStubMaterializer(source)
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, source, mat, now)

	result, err := svc.RunDaily(context.Background())
	require.NoError(t, err, "bad data is a warning, not a run failure")
	assert.Equal(t, Result{Generated: 1, Skipped: 1}, result)
	assert.Equal(t, 0, broken.UsedCredits)
	require.NotNil(t, broken.LastGeneratedDate, "the broken row is not re-evaluated all day")
}

func TestRunDailyIsolatesFailures(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 30)
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	mat.err = errors.New("connection reset")
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, source, mat, now)

	result, err := svc.RunDaily(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Result{Skipped: 1}, result)
	assert.Nil(t, sub.LastGeneratedDate, "a failed materialization leaves the marker for a retry")
}

func TestRunDailySurfacesMarkerFailure(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 30)
	source := newFakeSubSource(sub)
	source.markErr = errors.New("connection reset")
	mat := newStubMaterializer(source)
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, source, mat, now)

	result, err := svc.RunDaily(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advance generation marker")
	assert.Equal(t, Result{Generated: 1}, result, "the order landed even though the marker did not")
	assert.Len(t, mat.orders, 1)
}

func TestRunBulkGeneratesWholeSchedule(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(7, 0, start, 14)
	sub.Frequency = enums.FrequencyEveryOtherDay
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	svc, notif := newTestService(t, source, mat, start)

	result, err := svc.RunBulk(context.Background(), sub.ID, nil)
	require.NoError(t, err)

	// Every-other-day across a 14-day window yields 8 due dates; the
	// 7-credit budget cuts generation off one short.
	assert.Equal(t, 7, result.Generated)
	assert.Equal(t, 7, sub.UsedCredits)
	assert.False(t, sub.IsActive, "spending the last credit deactivates the subscription")
	assert.Len(t, notif.created, 7)

	last := mat.orders[len(mat.orders)-1]
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), last.Date)
}

func TestRunBulkSkipsExistingOccurrences(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 6)
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	svc, _ := newTestService(t, source, mat, start)

	// The daily driver already produced 03-02 and 03-03.
	seeded := *sub
	for _, day := range []int{2, 3} {
		_, err := mat.Materialize(context.Background(), &seeded, time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}

	result, err := svc.RunBulk(context.Background(), sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Generated, "daily window 03-02..03-08 minus two existing dates")
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, mat.orders, 7)
}

func TestRunBulkHonorsStartFrom(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 6)
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	svc, _ := newTestService(t, source, mat, start)

	from := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	result, err := svc.RunBulk(context.Background(), sub.ID, &from)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Generated, "03-06 through 03-08")
	for _, order := range mat.orders {
		assert.False(t, order.Date.Before(from))
	}
}

func TestRunBulkInactiveSubscriptionIsNoop(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 6)
	sub.IsActive = false
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	svc, _ := newTestService(t, source, mat, start)

	result, err := svc.RunBulk(context.Background(), sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Empty(t, mat.orders)
}

func TestRunBackfillFillsGapsOnly(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 30)
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	svc, _ := newTestService(t, source, mat, time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC))

	// The scheduler was down 03-04 through 03-06; 03-03 already exists.
	seeded := *sub
	_, err := mat.Materialize(context.Background(), &seeded, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	result, err := svc.RunBackfill(context.Background(),
		time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Generated)
	assert.Equal(t, 1, result.Skipped)
	assert.Nil(t, sub.LastGeneratedDate, "backfill never touches the daily marker")
}

func TestRunBackfillRejectsBadRanges(t *testing.T) {
	source := newFakeSubSource()
	mat := newStubMaterializer(source)
	svc, _ := newTestService(t, source, mat, time.Now())

	_, err := svc.RunBackfill(context.Background(),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)

	_, err = svc.RunBackfill(context.Background(),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestDriversNeverDuplicateADate(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	sub := dailySubscription(15, 0, start, 6)
	source := newFakeSubSource(sub)
	mat := newStubMaterializer(source)
	now := time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, source, mat, now)

	_, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	_, err = svc.RunBulk(context.Background(), sub.ID, nil)
	require.NoError(t, err)
	_, err = svc.RunBackfill(context.Background(), start, start.AddDate(0, 0, 6))
	require.NoError(t, err)

	seen := map[string]int{}
	for _, order := range mat.orders {
		seen[order.Date.Format("2006-01-02")]++
	}
	for date, count := range seen {
		assert.Equal(t, 1, count, "date %s materialized more than once", date)
	}
	assert.Len(t, seen, 7, "daily window 03-02..03-08 fully covered")
}
