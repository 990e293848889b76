package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers (the UI and the product service
	// parse them as such), not as quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Order is the aggregate root. It exclusively owns its items: an OrderItem is
// never created, loaded or referenced outside of its order.
//
// TotalAmount is derived, never accepted from a caller. Items are frozen once
// the order is persisted; only Status changes afterwards.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId"`
	OrderDate       time.Time       `json:"orderDate"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress string          `json:"shippingAddress"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	// Version guards concurrent status updates, incremented by the store on
	// every write.
	Version int64 `json:"-"`
}

// OrderItem is one line of an order. ProductName and UnitPrice are snapshots
// taken from the catalog at creation time, so historical orders keep their
// original pricing no matter what happens to the product later.
type OrderItem struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// RecomputeTotals sets every item subtotal to quantity x unit price and the
// order total to the exact decimal sum of the subtotals. It is called once,
// at the point where the items are finalized, never as a side effect of
// saving.
func (o *Order) RecomputeTotals() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].Subtotal = o.Items[i].UnitPrice.Mul(decimal.NewFromInt(int64(o.Items[i].Quantity)))
		total = total.Add(o.Items[i].Subtotal)
	}
	o.TotalAmount = total
}

// CreateOrderRequest is the inbound shape for order creation. Quantities and
// address bounds are re-checked by the service layer; the binding tags only
// reject requests that are structurally broken.
type CreateOrderRequest struct {
	UserID          int64              `json:"userId" binding:"required"`
	ShippingAddress string             `json:"shippingAddress" binding:"required"`
	Items           []OrderItemRequest `json:"items" binding:"required,dive"`
}

type OrderItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderEvent is the message published to RabbitMQ after a committed state
// change (created, status_updated, cancelled) and for delayed payment checks.
type OrderEvent struct {
	OrderID  int64           `json:"orderId"`
	UserID   int64           `json:"userId"`
	Type     string          `json:"type"`
	Status   OrderStatus     `json:"status"`
	Total    decimal.Decimal `json:"total"`
	Occurred time.Time       `json:"occurred"`
}

const (
	EventOrderCreated  = "created"
	EventStatusUpdated = "status_updated"
	EventOrderCanceled = "cancelled"
	EventPaymentCheck  = "payment_check"
)
