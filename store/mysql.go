package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"order-service/errs"
	"order-service/models"
)

// MySQLStore implements OrderStore on top of database/sql.
type MySQLStore struct {
	db *sql.DB
}

var _ OrderStore = (*MySQLStore)(nil)

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// Open connects to MySQL and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

func (s *MySQLStore) Create(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Version = 1

	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, order_date, status, total_amount, shipping_address, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.UserID, order.OrderDate, order.Status, order.TotalAmount,
		order.ShippingAddress, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = orderID

	for i := range order.Items {
		itemResult, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal)
			VALUES (?, ?, ?, ?, ?, ?)`,
			orderID, order.Items[i].ProductID, order.Items[i].ProductName,
			order.Items[i].Quantity, order.Items[i].UnitPrice, order.Items[i].Subtotal,
		)
		if err != nil {
			return err
		}
		itemID, err := itemResult.LastInsertId()
		if err != nil {
			return err
		}
		order.Items[i].ID = itemID
	}

	return tx.Commit()
}

func (s *MySQLStore) Get(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, order_date, status, total_amount, shipping_address, version, created_at, updated_at
		FROM orders
		WHERE id = ?`, id,
	).Scan(
		&order.ID, &order.UserID, &order.OrderDate, &order.Status, &order.TotalAmount,
		&order.ShippingAddress, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &errs.NotFoundError{Resource: "order", ID: id}
		}
		return nil, err
	}

	items, err := s.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (s *MySQLStore) loadItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *MySQLStore) List(ctx context.Context, filter Filter) ([]models.Order, error) {
	query := `
		SELECT o.id, o.user_id, o.order_date, o.status, o.total_amount, o.shipping_address, o.version, o.created_at, o.updated_at,
		       oi.id, oi.product_id, oi.product_name, oi.quantity, oi.unit_price, oi.subtotal
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id`
	var (
		conds []string
		args  []any
	)
	if filter.UserID != nil {
		conds = append(conds, "o.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != nil {
		conds = append(conds, "o.status = ?")
		args = append(args, *filter.Status)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY o.created_at DESC, o.id DESC, oi.id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// One joined row per item; fold them back into aggregates, preserving the
	// query's order ordering.
	byID := make(map[int64]*models.Order)
	var sequence []int64
	for rows.Next() {
		var (
			order models.Order
			item  models.OrderItem
		)
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.OrderDate, &order.Status, &order.TotalAmount,
			&order.ShippingAddress, &order.Version, &order.CreatedAt, &order.UpdatedAt,
			&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.Subtotal,
		); err != nil {
			return nil, err
		}

		existing, ok := byID[order.ID]
		if !ok {
			byID[order.ID] = &order
			sequence = append(sequence, order.ID)
			existing = &order
		}
		existing.Items = append(existing.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(sequence))
	for _, id := range sequence {
		orders = append(orders, *byID[id])
	}
	return orders, nil
}

func (s *MySQLStore) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus, version int64) (*models.Order, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		status, time.Now().UTC(), id, version,
	)
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either the order is gone or someone else updated it first; a
		// re-read tells the two apart.
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, errs.ErrVersionConflict
	}

	return s.Get(ctx, id)
}

func (s *MySQLStore) ExistsItemWithProduct(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = ?)",
		productID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
