package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vantorrr/yauberu-backend/internal/recurrence"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/Vantorrr/yauberu-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Driver labels reported on the generation metrics.
const (
	DriverDaily    = "daily"
	DriverBulk     = "bulk"
	DriverBackfill = "backfill"
)

// maxBackfillDays caps one backfill invocation to a sane window.
const maxBackfillDays = 92

// Result aggregates one driver run.
type Result struct {
	Generated int
	Skipped   int
}

func (r Result) add(other Result) Result {
	return Result{Generated: r.Generated + other.Generated, Skipped: r.Skipped + other.Skipped}
}

type subscriptionSource interface {
	ListEligible(ctx context.Context) ([]models.Subscription, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	MarkGenerated(ctx context.Context, id uuid.UUID, date time.Time) error
}

type materializer interface {
	Materialize(ctx context.Context, sub *models.Subscription, date time.Time) (*models.Order, error)
}

type occurrenceIndex interface {
	ListOccurrenceDates(ctx context.Context, subscriptionID uuid.UUID) ([]time.Time, error)
}

type notifier interface {
	OrderCreated(ctx context.Context, order *models.Order)
}

// Service runs the three generation drivers. All of them feed the same
// materializer, so a date can never gain a second live order no matter
// which driver reaches it first.
type Service interface {
	RunDaily(ctx context.Context) (Result, error)
	RunBulk(ctx context.Context, subscriptionID uuid.UUID, startFrom *time.Time) (Result, error)
	RunBackfill(ctx context.Context, from, to time.Time) (Result, error)
}

// ServiceParams lists the dependencies the generation drivers need.
type ServiceParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionSource
	Materializer  materializer
	Orders        occurrenceIndex
	Notifier      notifier
	Metrics       *metrics.GenerationMetrics
	Now           func() time.Time
}

type service struct {
	logg          *logger.Logger
	subscriptions subscriptionSource
	materializer  materializer
	orders        occurrenceIndex
	notifier      notifier
	metrics       *metrics.GenerationMetrics
	now           func() time.Time
}

// NewService wires the generation drivers. Notifier and metrics are
// optional; everything else is required.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription source required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("materializer required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order index required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:          params.Logger,
		subscriptions: params.Subscriptions,
		materializer:  params.Materializer,
		orders:        params.Orders,
		notifier:      params.Notifier,
		metrics:       params.Metrics,
		now:           now,
	}, nil
}

// RunDaily evaluates today for every eligible subscription. A subscription
// whose marker already points at today is skipped outright, which makes
// repeated runs within one day cheap no-ops. One broken subscription never
// stops the sweep; its error joins the combined return.
func (s *service) RunDaily(ctx context.Context) (Result, error) {
	today := recurrence.DateOnly(s.now().UTC())

	subs, err := s.subscriptions.ListEligible(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list eligible subscriptions: %w", err)
	}

	var total Result
	var errs []error
	for i := range subs {
		sub := subs[i]
		result, err := s.evaluateToday(ctx, &sub, today)
		total = total.add(result)
		if err != nil {
			logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
			s.logg.Error(logCtx, "daily generation failed for subscription", err)
			errs = append(errs, err)
		}
	}

	s.metrics.AddGenerated(DriverDaily, total.Generated)
	s.metrics.AddSkipped(DriverDaily, total.Skipped)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"date":      today.Format("2006-01-02"),
		"generated": total.Generated,
		"skipped":   total.Skipped,
	}), "daily generation complete")
	return total, multierr.Combine(errs...)
}

func (s *service) evaluateToday(ctx context.Context, sub *models.Subscription, today time.Time) (Result, error) {
	if sub.LastGeneratedDate != nil && !recurrence.DateOnly(*sub.LastGeneratedDate).Before(today) {
		return Result{Skipped: 1}, nil
	}

	due, err := recurrence.Due(*sub, today)
	if err != nil {
		if errors.Is(err, recurrence.ErrUnknownFrequency) {
			// Bad data on one row must not wedge the sweep. The marker
			// still advances so the row is not re-evaluated all day.
			logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
			s.logg.Warn(s.logg.WithField(logCtx, "frequency", string(sub.Frequency)), "skipping subscription with unknown frequency")
			if markErr := s.subscriptions.MarkGenerated(ctx, sub.ID, today); markErr != nil {
				return Result{Skipped: 1}, fmt.Errorf("advance generation marker: %w", markErr)
			}
			return Result{Skipped: 1}, nil
		}
		return Result{Skipped: 1}, err
	}

	result := Result{Skipped: 1}
	if due {
		order, err := s.materializer.Materialize(ctx, sub, today)
		if err != nil {
			// Leave the marker alone so the next run retries today.
			return Result{Skipped: 1}, err
		}
		if order != nil {
			result = Result{Generated: 1}
			s.notifyCreated(ctx, order)
		}
	}

	if err := s.subscriptions.MarkGenerated(ctx, sub.ID, today); err != nil {
		return result, fmt.Errorf("advance generation marker: %w", err)
	}
	return result, nil
}

// RunBulk materializes every remaining due date of one subscription, up to
// its credit budget. Used right after a purchase so the client sees the
// whole schedule at once.
func (s *service) RunBulk(ctx context.Context, subscriptionID uuid.UUID, startFrom *time.Time) (Result, error) {
	if subscriptionID == uuid.Nil {
		return Result{}, fmt.Errorf("subscription id is required")
	}
	sub, err := s.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return Result{}, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.IsActive {
		return Result{}, nil
	}
	if sub.StartDate == nil || sub.EndDate == nil {
		return Result{}, nil
	}

	from := *sub.StartDate
	if startFrom != nil && startFrom.After(from) {
		from = *startFrom
	}
	dueDates, err := recurrence.DueDates(*sub, from, *sub.EndDate)
	if err != nil {
		if errors.Is(err, recurrence.ErrUnknownFrequency) {
			s.logg.Warn(s.logg.WithSubscriptionID(ctx, sub.ID.String()), "skipping subscription with unknown frequency")
			return Result{}, nil
		}
		return Result{}, err
	}

	taken, err := s.orders.ListOccurrenceDates(ctx, sub.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list existing occurrences: %w", err)
	}
	occupied := make(map[time.Time]struct{}, len(taken))
	for _, date := range taken {
		occupied[recurrence.DateOnly(date)] = struct{}{}
	}

	var total Result
	for _, date := range dueDates {
		if sub.Exhausted() {
			break
		}
		if _, ok := occupied[date]; ok {
			total.Skipped++
			continue
		}
		order, err := s.materializer.Materialize(ctx, sub, date)
		if err != nil {
			return total, err
		}
		if order == nil {
			total.Skipped++
			continue
		}
		total.Generated++
		s.notifyCreated(ctx, order)
	}

	s.metrics.AddGenerated(DriverBulk, total.Generated)
	s.metrics.AddSkipped(DriverBulk, total.Skipped)
	s.logg.Info(s.logg.WithFields(s.logg.WithSubscriptionID(ctx, sub.ID.String()), map[string]any{
		"generated": total.Generated,
		"skipped":   total.Skipped,
	}), "bulk generation complete")
	return total, nil
}

// RunBackfill re-evaluates a date range for every eligible subscription.
// It is the recovery path after scheduler downtime: nothing here touches
// the daily marker, so the next daily run behaves as usual.
func (s *service) RunBackfill(ctx context.Context, from, to time.Time) (Result, error) {
	from = recurrence.DateOnly(from)
	to = recurrence.DateOnly(to)
	if to.Before(from) {
		return Result{}, fmt.Errorf("backfill range is inverted")
	}
	if int(to.Sub(from).Hours()/24) > maxBackfillDays {
		return Result{}, fmt.Errorf("backfill range exceeds %d days", maxBackfillDays)
	}

	subs, err := s.subscriptions.ListEligible(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list eligible subscriptions: %w", err)
	}

	var total Result
	var errs []error
	for i := range subs {
		sub := subs[i]
		result, err := s.backfillSubscription(ctx, &sub, from, to)
		total = total.add(result)
		if err != nil {
			logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
			s.logg.Error(logCtx, "backfill failed for subscription", err)
			errs = append(errs, err)
		}
	}

	s.metrics.AddGenerated(DriverBackfill, total.Generated)
	s.metrics.AddSkipped(DriverBackfill, total.Skipped)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"from":      from.Format("2006-01-02"),
		"to":        to.Format("2006-01-02"),
		"generated": total.Generated,
		"skipped":   total.Skipped,
	}), "backfill complete")
	return total, multierr.Combine(errs...)
}

func (s *service) backfillSubscription(ctx context.Context, sub *models.Subscription, from, to time.Time) (Result, error) {
	dueDates, err := recurrence.DueDates(*sub, from, to)
	if err != nil {
		if errors.Is(err, recurrence.ErrUnknownFrequency) {
			s.logg.Warn(s.logg.WithSubscriptionID(ctx, sub.ID.String()), "skipping subscription with unknown frequency")
			return Result{Skipped: 1}, nil
		}
		return Result{}, err
	}

	var total Result
	for _, date := range dueDates {
		if sub.Exhausted() {
			break
		}
		order, err := s.materializer.Materialize(ctx, sub, date)
		if err != nil {
			return total, err
		}
		if order == nil {
			total.Skipped++
			continue
		}
		total.Generated++
		s.notifyCreated(ctx, order)
	}
	return total, nil
}

func (s *service) notifyCreated(ctx context.Context, order *models.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.OrderCreated(ctx, order)
}
