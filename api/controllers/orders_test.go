package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Vantorrr/yauberu-backend/api/middleware"
	"github.com/Vantorrr/yauberu-backend/internal/orders"
	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	pkgerrors "github.com/Vantorrr/yauberu-backend/pkg/errors"
)

func TestCancelOrderSuccess(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	called := false
	svc := &testOrdersService{
		cancelFn: func(ctx context.Context, oid, aid uuid.UUID) error {
			called = true
			if oid != orderID {
				t.Fatalf("unexpected order %s", oid)
			}
			if aid != userID {
				t.Fatalf("unexpected actor %s", aid)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/cancel", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	CancelOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestCancelOrderMissingUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+uuid.NewString()+"/cancel", nil)
	req = addRouteParam(req, "orderId", uuid.NewString())
	resp := httptest.NewRecorder()
	CancelOrder(&testOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCancelOrderInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/nope/cancel", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "orderId", "nope")
	resp := httptest.NewRecorder()
	CancelOrder(&testOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCancelOrderStateConflictPassesThrough(t *testing.T) {
	svc := &testOrdersService{
		cancelFn: func(ctx context.Context, oid, aid uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only scheduled orders can be cancelled")
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+uuid.NewString()+"/cancel", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "orderId", uuid.NewString())
	resp := httptest.NewRecorder()
	CancelOrder(svc, testLogger())(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestOrderDetailForbiddenForForeignOrder(t *testing.T) {
	owner := uuid.New()
	orderID := uuid.New()
	svc := &testOrdersService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: id, UserID: owner}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String(), nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	OrderDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestListOrdersScopedToActor(t *testing.T) {
	userID := uuid.New()
	svc := &testOrdersService{
		historyFn: func(ctx context.Context, params orders.HistoryParams) (*orders.HistoryPage, error) {
			if params.UserID != userID {
				t.Fatalf("unexpected user %s", params.UserID)
			}
			if params.Limit != 10 || params.Cursor != "abc" {
				t.Fatalf("pagination params not forwarded: %+v", params.Params)
			}
			return &orders.HistoryPage{
				Items:  []models.Order{{ID: uuid.New(), UserID: params.UserID}},
				Cursor: "next",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders?limit=10&cursor=abc", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	ListOrders(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"cursor":"next"`) {
		t.Fatalf("next cursor missing from response: %s", resp.Body.String())
	}
}

func TestListOrdersRejectsOversizedLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders?limit=500", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	ListOrders(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
