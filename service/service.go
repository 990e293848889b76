// Package service implements the order-fulfillment orchestration: creation
// against the two remote collaborators, the lifecycle operations and the
// read-only queries.
package service

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"order-service/clients"
	"order-service/errs"
	"order-service/models"
	"order-service/store"
)

const (
	minShippingAddressLen = 10
	maxShippingAddressLen = 200

	paymentCheckDelay = 15 * time.Minute
)

// Observer receives a callback after each successful state change. It is
// optional; a nil observer disables it. Implementations must not block.
type Observer interface {
	OrderCreated(status models.OrderStatus)
	OrderStatusChanged(from, to models.OrderStatus)
}

// EventPublisher pushes order events to the message broker. Publishing is
// post-commit and best-effort: errors are logged, never surfaced to the API
// caller.
type EventPublisher interface {
	PublishOrderEvent(event models.OrderEvent) error
	PublishPaymentCheck(orderID int64, delay time.Duration) error
}

// OrderService coordinates the membership service, the product catalog and
// the local order store.
type OrderService struct {
	store    store.OrderStore
	members  clients.MembershipClient
	catalog  clients.ProductCatalogClient
	observer Observer       // optional
	events   EventPublisher // optional
}

func New(orderStore store.OrderStore, members clients.MembershipClient, catalog clients.ProductCatalogClient) *OrderService {
	return &OrderService{store: orderStore, members: members, catalog: catalog}
}

// WithObserver attaches an optional metrics observer.
func (s *OrderService) WithObserver(observer Observer) *OrderService {
	s.observer = observer
	return s
}

// WithEvents attaches an optional event publisher.
func (s *OrderService) WithEvents(events EventPublisher) *OrderService {
	s.events = events
	return s
}

// CreateOrder turns a request into a priced, stock-reserved, persisted order:
//
//  1. local validation
//  2. user existence via the membership service
//  3. per item, in caller order: product snapshot and stock pre-check
//  4. totals from the snapshots, never from the live catalog
//  5. one transactional write of the whole aggregate, status PENDING
//  6. per item stock decrement against the catalog
//
// Everything up to step 5 is side-effect-free, so those failures are safe to
// retry. Step 6 runs after commit with no cross-service transaction behind
// it: a failure there returns the persisted order together with a
// StockSyncError, and neither the order nor the decrements already applied
// are rolled back. The decrement calls carry no idempotency key, so this
// layer never retries them on its own. Step 6 runs on a detached context:
// once the order is committed, the caller hanging up does not stop the
// decrements.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	exists, err := s.members.UserExists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &errs.NotFoundError{Resource: "user", ID: req.UserID}
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product.Stock < line.Quantity {
			return nil, &errs.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   line.Quantity,
			}
		}
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
		})
	}

	order := &models.Order{
		UserID:          req.UserID,
		OrderDate:       time.Now().UTC(),
		Status:          models.StatusPending,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Items:           items,
	}
	order.RecomputeTotals()

	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}

	// The order is committed; a caller hanging up must not interrupt the
	// decrements below. WithoutCancel keeps the context values, so the
	// forwarded bearer token still reaches the catalog.
	ctx = context.WithoutCancel(ctx)

	s.notifyCreated(order)

	for _, item := range order.Items {
		if err := s.catalog.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			log.Printf("stock adjustment failed after creating order %d (product %d): %v",
				order.ID, item.ProductID, err)
			return order, &errs.StockSyncError{OrderID: order.ID, ProductID: item.ProductID, Err: err}
		}
	}

	log.Printf("order %d created for user %d, total %s", order.ID, order.UserID, order.TotalAmount)
	return order, nil
}

func validateCreate(req models.CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return &errs.ValidationError{Msg: "order must contain at least one item"}
	}
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return &errs.ValidationError{Msg: "item quantity must be at least 1"}
		}
		if line.ProductID <= 0 {
			return &errs.ValidationError{Msg: "item product id is required"}
		}
	}
	address := strings.TrimSpace(req.ShippingAddress)
	if n := utf8.RuneCountInString(address); n < minShippingAddressLen || n > maxShippingAddressLen {
		return &errs.ValidationError{Msg: "shipping address must be between 10 and 200 characters"}
	}
	return nil
}

// UpdateStatus moves an order to a new lifecycle status. The terminal-state
// guard lives on the entity; the store's version check catches concurrent
// writers.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, next models.OrderStatus) (*models.Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	if err := order.Transition(next); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateStatus(ctx, id, next, order.Version)
	if err != nil {
		return nil, err
	}

	s.notifyStatusChanged(updated, previous, models.EventStatusUpdated)
	log.Printf("order %d status %s -> %s", id, previous, next)
	return updated, nil
}

// Cancel sets the order to CANCELLED, subject to the same terminal-state
// guard as UpdateStatus. It does not restock the catalog.
func (s *OrderService) Cancel(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	if err := order.Cancel(); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateStatus(ctx, id, models.StatusCancelled, order.Version)
	if err != nil {
		return nil, err
	}

	s.notifyStatusChanged(updated, previous, models.EventOrderCanceled)
	log.Printf("order %d cancelled", id)
	return updated, nil
}

// GetOrder loads one order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.store.Get(ctx, id)
}

// ListOrders loads every order, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.List(ctx, store.Filter{})
}

// ListByUser loads a user's orders.
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.List(ctx, store.Filter{UserID: &userID})
}

// ListByStatus loads all orders in one status.
func (s *OrderService) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	return s.store.List(ctx, store.Filter{Status: &status})
}

// IsProductInAnyOrder reports whether any order item references the product.
// The product service calls this before allowing a product delete.
func (s *OrderService) IsProductInAnyOrder(ctx context.Context, productID int64) (bool, error) {
	return s.store.ExistsItemWithProduct(ctx, productID)
}

func (s *OrderService) notifyCreated(order *models.Order) {
	if s.observer != nil {
		s.observer.OrderCreated(order.Status)
	}
	if s.events == nil {
		return
	}
	event := models.OrderEvent{
		OrderID:  order.ID,
		UserID:   order.UserID,
		Type:     models.EventOrderCreated,
		Status:   order.Status,
		Total:    order.TotalAmount,
		Occurred: time.Now().UTC(),
	}
	if err := s.events.PublishOrderEvent(event); err != nil {
		log.Printf("failed to publish order created event: %v", err)
	}
	if err := s.events.PublishPaymentCheck(order.ID, paymentCheckDelay); err != nil {
		log.Printf("failed to publish delayed payment check event: %v", err)
	}
}

func (s *OrderService) notifyStatusChanged(order *models.Order, previous models.OrderStatus, eventType string) {
	if s.observer != nil {
		s.observer.OrderStatusChanged(previous, order.Status)
	}
	if s.events == nil {
		return
	}
	event := models.OrderEvent{
		OrderID:  order.ID,
		UserID:   order.UserID,
		Type:     eventType,
		Status:   order.Status,
		Total:    order.TotalAmount,
		Occurred: time.Now().UTC(),
	}
	if err := s.events.PublishOrderEvent(event); err != nil {
		log.Printf("failed to publish order %s event: %v", eventType, err)
	}
}
