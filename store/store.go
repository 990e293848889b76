// Package store persists Order aggregates. Create is atomic at the aggregate
// level (order plus items in one transaction); status writes use optimistic
// concurrency so two racing updates of the same order cannot interleave
// undetected.
package store

import (
	"context"

	"order-service/models"
)

// Filter narrows List results. Nil fields are ignored.
type Filter struct {
	UserID *int64
	Status *models.OrderStatus
}

// OrderStore is the persistence port for the Order aggregate.
type OrderStore interface {
	// Create inserts the order and all of its items in one transaction and
	// fills in the generated ids and timestamps.
	Create(ctx context.Context, order *models.Order) error

	// Get loads an order with its items, or a NotFoundError.
	Get(ctx context.Context, id int64) (*models.Order, error)

	// List loads orders matching the filter, newest first, items included.
	List(ctx context.Context, filter Filter) ([]models.Order, error)

	// UpdateStatus writes the new status if the stored version still matches.
	// It returns the refreshed order, errs.ErrVersionConflict on a lost race,
	// or a NotFoundError.
	UpdateStatus(ctx context.Context, id int64, status models.OrderStatus, version int64) (*models.Order, error)

	// ExistsItemWithProduct reports whether any order item references the
	// product.
	ExistsItemWithProduct(ctx context.Context, productID int64) (bool, error)
}
