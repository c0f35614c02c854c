package controllers

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Vantorrr/yauberu-backend/internal/generator"
	"github.com/Vantorrr/yauberu-backend/internal/orders"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func gotAmount(value string, t *testing.T) decimal.Decimal {
	t.Helper()
	amount, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	return amount
}

func addRouteParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

type testOrdersService struct {
	getFn         func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	historyFn     func(ctx context.Context, params orders.HistoryParams) (*orders.HistoryPage, error)
	cancelFn      func(ctx context.Context, orderID, actorID uuid.UUID) error
	takeFn        func(ctx context.Context, orderID, courierID uuid.UUID) error
	completeFn    func(ctx context.Context, input orders.CompleteInput) error
	requestUndoFn func(ctx context.Context, orderID, courierID uuid.UUID) error
	resolveUndoFn func(ctx context.Context, orderID uuid.UUID, approve bool) error
	complexesFn   func(ctx context.Context) ([]orders.ComplexSummary, error)
	buildingsFn   func(ctx context.Context, complexID uuid.UUID) ([]orders.BuildingSummary, error)
	forCourierFn  func(ctx context.Context, complexID uuid.UUID, building string) ([]models.Order, error)
}

func (s *testOrdersService) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, nil
}

func (s *testOrdersService) History(ctx context.Context, params orders.HistoryParams) (*orders.HistoryPage, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, params)
	}
	return &orders.HistoryPage{}, nil
}

func (s *testOrdersService) Cancel(ctx context.Context, orderID, actorID uuid.UUID) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, orderID, actorID)
	}
	return nil
}

func (s *testOrdersService) Take(ctx context.Context, orderID, courierID uuid.UUID) error {
	if s.takeFn != nil {
		return s.takeFn(ctx, orderID, courierID)
	}
	return nil
}

func (s *testOrdersService) Complete(ctx context.Context, input orders.CompleteInput) error {
	if s.completeFn != nil {
		return s.completeFn(ctx, input)
	}
	return nil
}

func (s *testOrdersService) RequestUndo(ctx context.Context, orderID, courierID uuid.UUID) error {
	if s.requestUndoFn != nil {
		return s.requestUndoFn(ctx, orderID, courierID)
	}
	return nil
}

func (s *testOrdersService) ResolveUndo(ctx context.Context, orderID uuid.UUID, approve bool) error {
	if s.resolveUndoFn != nil {
		return s.resolveUndoFn(ctx, orderID, approve)
	}
	return nil
}

func (s *testOrdersService) TodayComplexes(ctx context.Context) ([]orders.ComplexSummary, error) {
	if s.complexesFn != nil {
		return s.complexesFn(ctx)
	}
	return nil, nil
}

func (s *testOrdersService) TodayBuildings(ctx context.Context, complexID uuid.UUID) ([]orders.BuildingSummary, error) {
	if s.buildingsFn != nil {
		return s.buildingsFn(ctx, complexID)
	}
	return nil, nil
}

func (s *testOrdersService) TodayForCourier(ctx context.Context, complexID uuid.UUID, building string) ([]models.Order, error) {
	if s.forCourierFn != nil {
		return s.forCourierFn(ctx, complexID, building)
	}
	return nil, nil
}

type testGeneratorService struct {
	dailyFn    func(ctx context.Context) (generator.Result, error)
	bulkFn     func(ctx context.Context, subscriptionID uuid.UUID, startFrom *time.Time) (generator.Result, error)
	backfillFn func(ctx context.Context, from, to time.Time) (generator.Result, error)
}

func (s *testGeneratorService) RunDaily(ctx context.Context) (generator.Result, error) {
	if s.dailyFn != nil {
		return s.dailyFn(ctx)
	}
	return generator.Result{}, nil
}

func (s *testGeneratorService) RunBulk(ctx context.Context, subscriptionID uuid.UUID, startFrom *time.Time) (generator.Result, error) {
	if s.bulkFn != nil {
		return s.bulkFn(ctx, subscriptionID, startFrom)
	}
	return generator.Result{}, nil
}

func (s *testGeneratorService) RunBackfill(ctx context.Context, from, to time.Time) (generator.Result, error) {
	if s.backfillFn != nil {
		return s.backfillFn(ctx, from, to)
	}
	return generator.Result{}, nil
}
