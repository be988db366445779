// Package catalog defines the product catalog and its persistence contract.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Product represents an item offered by the storefront.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Stock    int             `json:"stock"`
	ImageRef string          `json:"image"`
}

// Patch carries a partial product update. Nil fields are left untouched.
type Patch struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Category *string          `json:"category"`
	Stock    *int             `json:"stock"`
	ImageRef *string          `json:"image"`
}

// Repository defines behavior for persisting products.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, id int64, patch Patch) (Product, error)
	Delete(ctx context.Context, id int64) error

	// AdjustStock atomically adds delta to the product's stock, clamping
	// the result at zero, and returns the new stock value.
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
}

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrInvalidProduct indicates required product fields are missing or malformed.
var ErrInvalidProduct = errors.New("invalid product")

// Validate reports whether p can be stored as a new product.
func Validate(p Product) error {
	if p.Name == "" {
		return ErrInvalidProduct
	}
	if p.Price.IsNegative() {
		return ErrInvalidProduct
	}
	if p.Stock < 0 {
		return ErrInvalidProduct
	}
	return nil
}
