// Package order defines committed customer orders and their persistence
// contract. Orders are immutable once stored: they are created whole and
// deleted whole, never patched.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Line is a snapshot of one fulfilled cart line. The product name and unit
// price are copied at commit time so the order stays readable after the
// product is renamed or deleted.
type Line struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Order represents a committed customer order.
type Order struct {
	ID        string          `json:"id"`
	Customer  string          `json:"customer"`
	Account   string          `json:"account,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Lines     []Line          `json:"lines"`
	Total     decimal.Decimal `json:"total"`
}

// Repository defines behavior for persisting orders.
type Repository interface {
	// Create persists the order, assigning an ID and creation timestamp
	// when unset, and returns the stored order.
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customer string) ([]Order, error)
	Delete(ctx context.Context, id string) error
}

// ErrNotFound indicates the requested order does not exist.
var ErrNotFound = errors.New("order not found")
