package models

import (
	"order-service/errs"
)

// OrderStatus is the lifecycle state of an order. Values are uppercase on the
// wire.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// ParseStatus maps a wire string to an OrderStatus.
func ParseStatus(s string) (OrderStatus, bool) {
	for _, known := range Statuses {
		if s == string(known) {
			return known, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is permitted from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Transition moves the order to next. Only the terminal states block a
// change: a DELIVERED or CANCELLED order never changes again, whatever the
// target is, including re-setting the same status. Between non-terminal
// states any move is allowed; the machine is deliberately permissive and
// tightening it would be a contract change for existing callers.
func (o *Order) Transition(next OrderStatus) error {
	if o.Status.Terminal() {
		return &errs.InvalidTransitionError{OrderID: o.ID, Status: string(o.Status)}
	}
	o.Status = next
	return nil
}

// Cancel is a status-only operation: stock already decremented at creation is
// not restocked.
func (o *Order) Cancel() error {
	return o.Transition(StatusCancelled)
}
