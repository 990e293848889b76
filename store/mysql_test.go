package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-service/errs"
	"order-service/models"
)

func newMock(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLStore(db), mock
}

func orderColumns() []string {
	return []string{"id", "user_id", "order_date", "status", "total_amount",
		"shipping_address", "version", "created_at", "updated_at"}
}

func itemColumns() []string {
	return []string{"id", "product_id", "product_name", "quantity", "unit_price", "subtotal"}
}

func TestCreateInsertsAggregateInOneTx(t *testing.T) {
	s, mock := newMock(t)

	order := &models.Order{
		UserID:          1,
		OrderDate:       time.Now().UTC(),
		Status:          models.StatusPending,
		TotalAmount:     decimal.RequireFromString("60.00"),
		ShippingAddress: "123 Test Street, Paris",
		Items: []models.OrderItem{
			{ProductID: 3, ProductName: "Keyboard", Quantity: 3,
				UnitPrice: decimal.RequireFromString("20.00"),
				Subtotal:  decimal.RequireFromString("60.00")},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(int64(1), sqlmock.AnyArg(), "PENDING", sqlmock.AnyArg(),
			"123 Test Street, Paris", int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(int64(5), int64(3), "Keyboard", 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Create(context.Background(), order))

	assert.Equal(t, int64(5), order.ID)
	assert.Equal(t, int64(11), order.Items[0].ID)
	assert.Equal(t, int64(1), order.Version)
	assert.False(t, order.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackOnItemInsertFailure(t *testing.T) {
	s, mock := newMock(t)

	order := &models.Order{
		UserID: 1, Status: models.StatusPending,
		ShippingAddress: "123 Test Street, Paris",
		Items:           []models.OrderItem{{ProductID: 3, ProductName: "Keyboard", Quantity: 1}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	require.Error(t, s.Create(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLoadsOrderWithItems(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(5, 1, now, "PENDING", "60.00", "123 Test Street, Paris", 1, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(itemColumns()).
			AddRow(11, 3, "Keyboard", 3, "20.00", "60.00"))

	order, err := s.Get(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, int64(5), order.ID)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("60.00")))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Keyboard", order.Items[0].ProductName)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("20.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders")).
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), 42)

	var notFoundErr *errs.NotFoundError
	require.True(t, errors.As(err, &notFoundErr))
	assert.Equal(t, "order", notFoundErr.Resource)
	assert.Equal(t, int64(42), notFoundErr.ID)
}

func TestUpdateStatusVersionConflict(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WithArgs("SHIPPED", sqlmock.AnyArg(), int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// The order still exists, so the stale version is a conflict, not a 404.
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(5, 1, now, "CONFIRMED", "60.00", "123 Test Street, Paris", 2, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(itemColumns()))

	_, err := s.UpdateStatus(context.Background(), 5, models.StatusShipped, 1)
	assert.True(t, errors.Is(err, errs.ErrVersionConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusGoneOrderIsNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders")).
		WillReturnError(sql.ErrNoRows)

	_, err := s.UpdateStatus(context.Background(), 42, models.StatusShipped, 1)

	var notFoundErr *errs.NotFoundError
	assert.True(t, errors.As(err, &notFoundErr))
}

func TestExistsItemWithProduct(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.ExistsItemWithProduct(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListFoldsJoinedRowsIntoAggregates(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()

	columns := append(orderColumns(), itemColumns()...)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN order_items")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(6, 1, now, "PENDING", "79.98", "123 Test Street, Paris", 1, now, now,
				21, 3, "Keyboard", 3, "20.00", "60.00").
			AddRow(6, 1, now, "PENDING", "79.98", "123 Test Street, Paris", 1, now, now,
				22, 4, "Mouse", 2, "9.99", "19.98").
			AddRow(5, 1, now, "SHIPPED", "20.00", "123 Test Street, Paris", 2, now, now,
				11, 3, "Keyboard", 1, "20.00", "20.00"))

	userID := int64(1)
	orders, err := s.List(context.Background(), Filter{UserID: &userID})
	require.NoError(t, err)

	require.Len(t, orders, 2)
	assert.Equal(t, int64(6), orders[0].ID)
	assert.Len(t, orders[0].Items, 2)
	assert.Equal(t, int64(5), orders[1].ID)
	assert.Len(t, orders[1].Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
