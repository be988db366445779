// Package memory implements an in-memory product repository with an
// optional JSON snapshot written after every mutation.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"tienda/pkg/catalog"
)

// Repository provides an in-memory implementation of catalog.Repository.
type Repository struct {
	mu       sync.RWMutex
	products map[int64]catalog.Product
	nextID   int64
	snapshot string
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{products: make(map[int64]catalog.Product), nextID: 1}
}

// NewWithSnapshot creates a repository that loads its initial state from
// path, if present, and rewrites the file after every mutation.
func NewWithSnapshot(path string) (*Repository, error) {
	r := New()
	r.snapshot = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	for _, p := range products {
		r.products[p.ID] = p
		if p.ID >= r.nextID {
			r.nextID = p.ID + 1
		}
	}
	return r, nil
}

// save rewrites the snapshot file. Callers must hold the write lock.
func (r *Repository) save() error {
	if r.snapshot == "" {
		return nil
	}
	out := make([]catalog.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(r.snapshot, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// List returns all products.
func (r *Repository) List(ctx context.Context) ([]catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

// Get retrieves a product by ID.
func (r *Repository) Get(ctx context.Context, id int64) (catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

// Create stores a new product under a fresh ID.
func (r *Repository) Create(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if err := catalog.Validate(p); err != nil {
		return catalog.Product{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	r.products[p.ID] = p
	if err := r.save(); err != nil {
		delete(r.products, p.ID)
		return catalog.Product{}, err
	}
	return p, nil
}

// Update merges the given patch into an existing product.
func (r *Repository) Update(ctx context.Context, id int64, patch catalog.Patch) (catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	p := prev
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.ImageRef != nil {
		p.ImageRef = *patch.ImageRef
	}
	r.products[id] = p
	if err := r.save(); err != nil {
		r.products[id] = prev
		return catalog.Product{}, err
	}
	return p, nil
}

// Delete removes a product by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	delete(r.products, id)
	if err := r.save(); err != nil {
		r.products[id] = prev
		return err
	}
	return nil
}

// AdjustStock adds delta to the product's stock under the write lock,
// clamping the result at zero.
func (r *Repository) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.products[id]
	if !ok {
		return 0, catalog.ErrNotFound
	}
	p := prev
	p.Stock += delta
	if p.Stock < 0 {
		p.Stock = 0
	}
	r.products[id] = p
	if err := r.save(); err != nil {
		r.products[id] = prev
		return 0, err
	}
	return p.Stock, nil
}
