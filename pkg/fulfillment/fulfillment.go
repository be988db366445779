// Package fulfillment turns requested carts into committed orders while
// keeping catalog stock consistent, and reverses them on cancellation.
package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tienda/pkg/catalog"
	"tienda/pkg/logger"
	"tienda/pkg/order"
)

// Guest is the customer identifier used when no identity is supplied.
const Guest = "guest"

// ErrEmptyOrder indicates every requested line was skipped, so there was
// nothing to fulfill. No stock is mutated in that case.
var ErrEmptyOrder = errors.New("no fulfillable lines in order")

// LineRequest is one requested cart entry.
type LineRequest struct {
	ProductID int64 `json:"id"`
	Quantity  int   `json:"quantity"`
}

// Submission is a requested cart. Account optionally links the order to a
// registered account for history lookups.
type Submission struct {
	Customer string
	Account  string
	Lines    []LineRequest
}

// Config carries deployment-time fulfillment parameters.
type Config struct {
	// Markup scales each product's stored price to the price charged on an
	// order line. A zero value means no markup.
	Markup decimal.Decimal
}

// Engine implements order submission and cancellation against a product
// catalog and an order store.
type Engine struct {
	catalog catalog.Repository
	orders  order.Repository
	markup  decimal.Decimal
	log     *logger.Logger
}

// New creates an Engine backed by the given repositories.
func New(c catalog.Repository, o order.Repository, cfg Config, log *logger.Logger) *Engine {
	markup := cfg.Markup
	if markup.IsZero() {
		markup = decimal.NewFromInt(1)
	}
	return &Engine{catalog: c, orders: o, markup: markup, log: log}
}

// SubmitOrder resolves each requested line against current stock and commits
// the resulting order.
//
// Lines referencing unknown products, and lines whose clamped quantity is
// zero, are dropped silently: a stale cart entry never rejects the whole
// order. Requested quantities are clamped to available stock. Lines are
// processed strictly in sequence so a product appearing twice in one cart
// sees its own earlier decrement. Callers must inspect the returned lines
// rather than assume every requested item was honored.
func (e *Engine) SubmitOrder(ctx context.Context, sub Submission) (order.Order, error) {
	customer := sub.Customer
	if customer == "" {
		customer = Guest
	}

	o := order.Order{Customer: customer, Account: sub.Account, Total: decimal.Zero}
	for _, req := range sub.Lines {
		p, err := e.catalog.Get(ctx, req.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			e.log.Info(ctx, "skipping unknown product", "product_id", req.ProductID)
			continue
		}
		if err != nil {
			return order.Order{}, fmt.Errorf("look up product %d: %w", req.ProductID, err)
		}

		qty := req.Quantity
		if qty > p.Stock {
			qty = p.Stock
		}
		if qty <= 0 {
			e.log.Info(ctx, "skipping unfulfillable line", "product_id", req.ProductID, "requested", req.Quantity, "stock", p.Stock)
			continue
		}

		unitPrice := p.Price.Mul(e.markup)
		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(qty)))

		if _, err := e.catalog.AdjustStock(ctx, p.ID, -qty); err != nil {
			return order.Order{}, fmt.Errorf("adjust stock for product %d: %w", p.ID, err)
		}

		o.Lines = append(o.Lines, order.Line{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    qty,
			UnitPrice:   unitPrice,
			Subtotal:    subtotal,
		})
		o.Total = o.Total.Add(subtotal)
	}

	if len(o.Lines) == 0 {
		return order.Order{}, ErrEmptyOrder
	}

	committed, err := e.orders.Create(ctx, o)
	if err != nil {
		return order.Order{}, fmt.Errorf("persist order: %w", err)
	}
	e.log.Info(ctx, "order committed", "order_id", committed.ID, "customer", committed.Customer, "lines", len(committed.Lines), "total", committed.Total)
	return committed, nil
}

// CancelOrder restores the stock decremented by each of the order's lines
// and removes the order. Restoration is skipped for products deleted since
// the order was placed.
//
// The stock restore and the order delete are not atomic with respect to a
// concurrent SubmitOrder on the same products; the two stores are separate
// and no cross-store transaction is attempted.
func (e *Engine) CancelOrder(ctx context.Context, id string) error {
	o, err := e.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, l := range o.Lines {
		_, err := e.catalog.AdjustStock(ctx, l.ProductID, l.Quantity)
		if errors.Is(err, catalog.ErrNotFound) {
			e.log.Info(ctx, "product gone, skipping stock restore", "product_id", l.ProductID, "order_id", id)
			continue
		}
		if err != nil {
			return fmt.Errorf("restore stock for product %d: %w", l.ProductID, err)
		}
	}
	if err := e.orders.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	e.log.Info(ctx, "order cancelled", "order_id", id)
	return nil
}
