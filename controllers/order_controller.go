package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"order-service/errs"
	"order-service/middlewares"
	"order-service/models"
)

// Service is the boundary surface the HTTP layer consumes.
type Service interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, id int64) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	IsProductInAnyOrder(ctx context.Context, productID int64) (bool, error)
}

// OrderController exposes the order operations over HTTP. It holds no
// business logic: it binds requests, delegates, and maps the error taxonomy
// to status codes.
type OrderController struct {
	svc Service
}

func NewOrderController(svc Service) *OrderController {
	return &OrderController{svc: svc}
}

// CreateOrder handles POST /api/v1/orders.
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("create", success) }()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := ctl.svc.CreateOrder(c.Request.Context(), req)
	if err != nil {
		// The order may already exist when only the stock sync failed; give
		// the caller its id so the inconsistency can be reconciled.
		var syncErr *errs.StockSyncError
		if errors.As(err, &syncErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   err.Error(),
				"code":    "STOCK_SYNC_FAILED",
				"orderId": syncErr.OrderID,
			})
			return
		}
		writeError(c, err)
		return
	}

	success = true
	c.JSON(http.StatusCreated, order)
}

// GetOrders handles GET /api/v1/orders with optional userId / status filters.
func (ctl *OrderController) GetOrders(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("list", success) }()

	ctx := c.Request.Context()

	var (
		orders []models.Order
		err    error
	)
	switch {
	case c.Query("userId") != "":
		userID, parseErr := strconv.ParseInt(c.Query("userId"), 10, 64)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
		orders, err = ctl.svc.ListByUser(ctx, userID)
	case c.Query("status") != "":
		status, ok := models.ParseStatus(c.Query("status"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + c.Query("status")})
			return
		}
		orders, err = ctl.svc.ListByStatus(ctx, status)
	default:
		orders, err = ctl.svc.ListOrders(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	if orders == nil {
		orders = []models.Order{}
	}
	success = true
	c.JSON(http.StatusOK, orders)
}

// GetOrderDetails handles GET /api/v1/orders/:id.
func (ctl *OrderController) GetOrderDetails(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("details", success) }()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := ctl.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	success = true
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status.
func (ctl *OrderController) UpdateOrderStatus(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("update_status", success) }()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	var req models.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, ok := models.ParseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + req.Status})
		return
	}

	order, err := ctl.svc.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		writeError(c, err)
		return
	}

	success = true
	c.JSON(http.StatusOK, order)
}

// CancelOrder handles DELETE /api/v1/orders/:id. Cancellation is a status
// transition, not a delete: the aggregate stays in the store.
func (ctl *OrderController) CancelOrder(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("cancel", success) }()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	if _, err := ctl.svc.Cancel(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	success = true
	c.Status(http.StatusNoContent)
}

// ProductUsage handles GET /api/v1/product-usage/:productId. The product
// service calls it before allowing a product delete; the body is a bare
// boolean.
func (ctl *OrderController) ProductUsage(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("product_usage", success) }()

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
		return
	}

	exists, err := ctl.svc.IsProductInAnyOrder(c.Request.Context(), productID)
	if err != nil {
		writeError(c, err)
		return
	}

	success = true
	c.JSON(http.StatusOK, exists)
}

// HandleDeadLetter handles POST /dead-letter: operator hook for messages that
// ended up in the dead-letter queue.
func (ctl *OrderController) HandleDeadLetter(c *gin.Context) {
	success := false
	defer func() { middlewares.RecordOrderOperation("dead_letter", success) }()

	var deadLetter struct {
		OrderID int64  `json:"orderId"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&deadLetter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Printf("handling dead letter for order %d: %s", deadLetter.OrderID, deadLetter.Reason)

	success = true
	c.JSON(http.StatusOK, gin.H{"message": "dead letter recorded"})
}

// writeError maps the error taxonomy to HTTP. Validation and not-found map to
// client errors, business-rule conflicts to 409/422, upstream failures to
// 502; nothing beyond the taxonomy tag and message leaks out.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *errs.ValidationError
		notFoundErr   *errs.NotFoundError
		stockErr      *errs.InsufficientStockError
		transitionErr *errs.InvalidTransitionError
		upstreamErr   *errs.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NOT_FOUND"})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "INSUFFICIENT_STOCK"})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "INVALID_TRANSITION"})
	case errors.Is(err, errs.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "CONFLICT"})
	case errors.As(err, &upstreamErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": "UPSTREAM_UNAVAILABLE"})
	default:
		log.Printf("unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
