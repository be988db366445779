// Package postgres implements a PostgreSQL-backed order repository.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tienda/pkg/order"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository. The caller must ensure the database
// has the orders and order_lines tables:
//
//	CREATE TABLE IF NOT EXISTS orders (
//	    id TEXT PRIMARY KEY, customer TEXT NOT NULL, account TEXT,
//	    created_at TIMESTAMPTZ NOT NULL, total NUMERIC NOT NULL);
//	CREATE TABLE IF NOT EXISTS order_lines (
//	    order_id TEXT REFERENCES orders(id) ON DELETE CASCADE,
//	    position INT NOT NULL, product_id BIGINT NOT NULL,
//	    product_name TEXT NOT NULL, quantity INT NOT NULL,
//	    unit_price NUMERIC NOT NULL, subtotal NUMERIC NOT NULL);
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the order and its lines in one transaction.
func (r *Repository) Create(ctx context.Context, o order.Order) (order.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO orders (id,customer,account,created_at,total) VALUES ($1,$2,$3,$4,$5)",
		o.ID, o.Customer, o.Account, o.CreatedAt, o.Total.String())
	if err != nil {
		return order.Order{}, err
	}
	for i, l := range o.Lines {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_lines (order_id,position,product_id,product_name,quantity,unit_price,subtotal) VALUES ($1,$2,$3,$4,$5,$6,$7)",
			o.ID, i, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice.String(), l.Subtotal.String())
		if err != nil {
			return order.Order{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

func (r *Repository) lines(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id,product_name,quantity,unit_price,subtotal FROM order_lines WHERE order_id=$1 ORDER BY position",
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []order.Line
	for rows.Next() {
		var l order.Line
		var unitPrice, subtotal string
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity, &unitPrice, &subtotal); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		if l.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, fmt.Errorf("parse subtotal: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) scanOrders(ctx context.Context, rows *sql.Rows) ([]order.Order, error) {
	defer rows.Close()
	var orders []order.Order
	for rows.Next() {
		var o order.Order
		var total string
		if err := rows.Scan(&o.ID, &o.Customer, &o.Account, &o.CreatedAt, &total); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parse total: %w", err)
		}
		o.Total = d
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		lines, err := r.lines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

// Get retrieves an order and its lines by ID.
func (r *Repository) Get(ctx context.Context, id string) (order.Order, error) {
	var o order.Order
	var total string
	err := r.db.QueryRowContext(ctx,
		"SELECT id,customer,account,created_at,total FROM orders WHERE id=$1", id).
		Scan(&o.ID, &o.Customer, &o.Account, &o.CreatedAt, &total)
	if err == sql.ErrNoRows {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return order.Order{}, fmt.Errorf("parse total: %w", err)
	}
	if o.Lines, err = r.lines(ctx, id); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

// List fetches all orders.
func (r *Repository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id,customer,account,created_at,total FROM orders")
	if err != nil {
		return nil, err
	}
	return r.scanOrders(ctx, rows)
}

// ListByCustomer fetches all orders placed by the given customer or linked
// account.
func (r *Repository) ListByCustomer(ctx context.Context, customer string) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,customer,account,created_at,total FROM orders WHERE customer=$1 OR account=$1", customer)
	if err != nil {
		return nil, err
	}
	return r.scanOrders(ctx, rows)
}

// Delete removes an order by ID. Its lines go with it via ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id=$1", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return order.ErrNotFound
	}
	return nil
}
