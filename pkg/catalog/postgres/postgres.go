// Package postgres implements a PostgreSQL-backed product repository.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tienda/pkg/catalog"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository. The caller must ensure the database
// has a products table:
// CREATE TABLE IF NOT EXISTS products (
//
//	id BIGSERIAL PRIMARY KEY, name TEXT NOT NULL, price NUMERIC NOT NULL,
//	category TEXT, stock INT NOT NULL DEFAULT 0, image TEXT);
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanProduct(row interface{ Scan(...any) error }) (catalog.Product, error) {
	var p catalog.Product
	var price string
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Category, &p.Stock, &p.ImageRef); err != nil {
		return catalog.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("parse price: %w", err)
	}
	p.Price = d
	return p, nil
}

// List fetches all products.
func (r *Repository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id,name,price,category,stock,image FROM products")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Get retrieves a product by ID.
func (r *Repository) Get(ctx context.Context, id int64) (catalog.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id,name,price,category,stock,image FROM products WHERE id=$1", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, err
}

// Create inserts a new product and returns it with its assigned ID.
func (r *Repository) Create(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if err := catalog.Validate(p); err != nil {
		return catalog.Product{}, err
	}
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO products (name,price,category,stock,image) VALUES ($1,$2,$3,$4,$5) RETURNING id",
		p.Name, p.Price.String(), p.Category, p.Stock, p.ImageRef).Scan(&p.ID)
	if err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

// Update merges the given patch into an existing product.
func (r *Repository) Update(ctx context.Context, id int64, patch catalog.Patch) (catalog.Product, error) {
	sets := []string{}
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Price != nil {
		add("price", patch.Price.String())
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}
	if patch.ImageRef != nil {
		add("image", *patch.ImageRef)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	q := "UPDATE products SET " + strings.Join(sets, ", ") +
		" WHERE id=$1 RETURNING id,name,price,category,stock,image"
	p, err := scanProduct(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, err
}

// Delete removes a product by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id=$1", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// AdjustStock adds delta to the product's stock in a single atomic update,
// clamping the result at zero.
func (r *Repository) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx,
		"UPDATE products SET stock = GREATEST(stock + $2, 0) WHERE id=$1 RETURNING stock",
		id, delta).Scan(&stock)
	if err == sql.ErrNoRows {
		return 0, catalog.ErrNotFound
	}
	return stock, err
}
