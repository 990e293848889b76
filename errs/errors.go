// Package errs defines the error taxonomy shared by the order service:
// validation, not-found, upstream-unavailable, insufficient-stock and
// invalid-transition failures, plus the partial-success error returned when an
// order is persisted but the catalog stock adjustment fails afterwards.
package errs

import (
	"errors"
	"fmt"
)

// ErrVersionConflict is returned by the store when a status write loses a race
// against a concurrent update of the same order.
var ErrVersionConflict = errors.New("order was modified concurrently")

// ValidationError reports bad input shape. It is always raised before any
// remote call or write, so it carries no side effects.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports an absent user, product or order.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with id: %d", e.Resource, e.ID)
}

// UpstreamError reports that a collaborator service was unreachable or
// answered with an unexpected status. It is deliberately distinct from
// NotFoundError: a failing membership call must never be read as "user does
// not exist".
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// InsufficientStockError reports that the catalog holds less stock than the
// requested quantity.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// InvalidTransitionError reports a status change attempted on an order in a
// terminal state.
type InvalidTransitionError struct {
	OrderID int64
	Status  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d is %s and can no longer be modified", e.OrderID, e.Status)
}

// StockSyncError is the partial-success case of order creation: the order is
// committed and priced, but the stock decrement for ProductID failed, leaving
// catalog inventory ahead of reality. There is no automatic rollback or retry;
// the operator reconciles manually using the ids carried here.
type StockSyncError struct {
	OrderID   int64
	ProductID int64
	Err       error
}

func (e *StockSyncError) Error() string {
	return fmt.Sprintf("order %d created but stock adjustment failed for product %d: %v",
		e.OrderID, e.ProductID, e.Err)
}

func (e *StockSyncError) Unwrap() error { return e.Err }
