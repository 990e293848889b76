package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-service/errs"
	"order-service/models"
)

type stubService struct {
	order  *models.Order
	orders []models.Order
	exists bool
	err    error

	gotCreate models.CreateOrderRequest
	gotStatus models.OrderStatus
	gotID     int64
}

func (s *stubService) CreateOrder(_ context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	s.gotCreate = req
	return s.order, s.err
}

func (s *stubService) UpdateStatus(_ context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	s.gotID, s.gotStatus = id, status
	return s.order, s.err
}

func (s *stubService) Cancel(_ context.Context, id int64) (*models.Order, error) {
	s.gotID = id
	return s.order, s.err
}

func (s *stubService) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	s.gotID = id
	return s.order, s.err
}

func (s *stubService) ListOrders(context.Context) ([]models.Order, error) {
	return s.orders, s.err
}

func (s *stubService) ListByUser(_ context.Context, userID int64) ([]models.Order, error) {
	s.gotID = userID
	return s.orders, s.err
}

func (s *stubService) ListByStatus(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	s.gotStatus = status
	return s.orders, s.err
}

func (s *stubService) IsProductInAnyOrder(_ context.Context, productID int64) (bool, error) {
	s.gotID = productID
	return s.exists, s.err
}

func newRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	ctl := NewOrderController(svc)
	r := gin.New()
	r.POST("/api/v1/orders", ctl.CreateOrder)
	r.GET("/api/v1/orders", ctl.GetOrders)
	r.GET("/api/v1/orders/:id", ctl.GetOrderDetails)
	r.PUT("/api/v1/orders/:id/status", ctl.UpdateOrderStatus)
	r.DELETE("/api/v1/orders/:id", ctl.CancelOrder)
	r.GET("/api/v1/product-usage/:productId", ctl.ProductUsage)
	return r
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:              5,
		UserID:          1,
		OrderDate:       time.Now().UTC(),
		Status:          models.StatusPending,
		TotalAmount:     decimal.RequireFromString("60.00"),
		ShippingAddress: "123 Test Street, Paris",
		Items: []models.OrderItem{{
			ID: 11, ProductID: 3, ProductName: "Keyboard", Quantity: 3,
			UnitPrice: decimal.RequireFromString("20.00"),
			Subtotal:  decimal.RequireFromString("60.00"),
		}},
	}
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrderReturns201(t *testing.T) {
	svc := &stubService{order: sampleOrder()}
	r := newRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/v1/orders",
		`{"userId":1,"shippingAddress":"123 Test Street, Paris","items":[{"productId":3,"quantity":3}]}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(1), svc.gotCreate.UserID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, float64(60), body["totalAmount"], "amounts are JSON numbers")
	items := body["items"].([]any)
	item := items[0].(map[string]any)
	assert.Equal(t, "Keyboard", item["productName"])
	assert.Equal(t, float64(20), item["unitPrice"])
}

func TestCreateOrderErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantTag  string
	}{
		{"validation", &errs.ValidationError{Msg: "bad"}, http.StatusBadRequest, "VALIDATION"},
		{"user not found", &errs.NotFoundError{Resource: "user", ID: 9}, http.StatusNotFound, "NOT_FOUND"},
		{"insufficient stock", &errs.InsufficientStockError{ProductID: 3, Available: 2, Requested: 5}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"upstream down", &errs.UpstreamError{Service: "membership", Err: errors.New("timeout")}, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(&stubService{err: tc.err})
			w := doJSON(r, http.MethodPost, "/api/v1/orders",
				`{"userId":1,"shippingAddress":"123 Test Street, Paris","items":[{"productId":3,"quantity":3}]}`)

			require.Equal(t, tc.wantCode, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.wantTag, body["code"])
		})
	}
}

func TestCreateOrderStockSyncFailureExposesOrderID(t *testing.T) {
	order := sampleOrder()
	svc := &stubService{
		order: order,
		err: &errs.StockSyncError{OrderID: order.ID, ProductID: 3,
			Err: &errs.UpstreamError{Service: "product", Err: errors.New("down")}},
	}
	r := newRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/v1/orders",
		`{"userId":1,"shippingAddress":"123 Test Street, Paris","items":[{"productId":3,"quantity":3}]}`)

	require.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "STOCK_SYNC_FAILED", body["code"])
	assert.Equal(t, float64(5), body["orderId"])
}

func TestGetOrderDetails(t *testing.T) {
	svc := &stubService{order: sampleOrder()}
	r := newRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/v1/orders/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), svc.gotID)

	w = doJSON(r, http.MethodGet, "/api/v1/orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newRouter(&stubService{err: &errs.NotFoundError{Resource: "order", ID: 42}})
	w = doJSON(r, http.MethodGet, "/api/v1/orders/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrdersFilters(t *testing.T) {
	svc := &stubService{orders: []models.Order{*sampleOrder()}}
	r := newRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/v1/orders", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/orders?userId=7", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), svc.gotID)

	w = doJSON(r, http.MethodGet, "/api/v1/orders?status=SHIPPED", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusShipped, svc.gotStatus)

	w = doJSON(r, http.MethodGet, "/api/v1/orders?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrdersEmptyListIsJSONArray(t *testing.T) {
	r := newRouter(&stubService{})
	w := doJSON(r, http.MethodGet, "/api/v1/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestUpdateOrderStatus(t *testing.T) {
	order := sampleOrder()
	order.Status = models.StatusConfirmed
	svc := &stubService{order: order}
	r := newRouter(svc)

	w := doJSON(r, http.MethodPut, "/api/v1/orders/5/status", `{"status":"CONFIRMED"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusConfirmed, svc.gotStatus)

	w = doJSON(r, http.MethodPut, "/api/v1/orders/5/status", `{"status":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrderStatusTerminalGuard(t *testing.T) {
	r := newRouter(&stubService{err: &errs.InvalidTransitionError{OrderID: 5, Status: "DELIVERED"}})
	w := doJSON(r, http.MethodPut, "/api/v1/orders/5/status", `{"status":"CANCELLED"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpdateOrderStatusVersionConflict(t *testing.T) {
	r := newRouter(&stubService{err: errs.ErrVersionConflict})
	w := doJSON(r, http.MethodPut, "/api/v1/orders/5/status", `{"status":"SHIPPED"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelOrder(t *testing.T) {
	order := sampleOrder()
	order.Status = models.StatusCancelled
	svc := &stubService{order: order}
	r := newRouter(svc)

	w := doJSON(r, http.MethodDelete, "/api/v1/orders/5", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(5), svc.gotID)
}

func TestProductUsageReturnsBareBoolean(t *testing.T) {
	svc := &stubService{exists: true}
	r := newRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/v1/product-usage/3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", strings.TrimSpace(w.Body.String()))
	assert.Equal(t, int64(3), svc.gotID)
}
