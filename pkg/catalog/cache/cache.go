// Package cache decorates a product repository with a Redis read-through
// cache. Cache failures are logged and the call falls through to the
// underlying repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tienda/pkg/catalog"
	"tienda/pkg/logger"
)

const (
	keyAll  = "products:all"
	listTTL = 5 * time.Minute

	// A Get racing a concurrent AdjustStock can re-cache the pre-adjust
	// stock just after the invalidation; the short TTL bounds how long
	// such a stale entry survives.
	productTTL = 30 * time.Second
)

// Repository wraps another catalog.Repository with Redis caching.
type Repository struct {
	real  catalog.Repository
	redis *redis.Client
	log   *logger.Logger
}

// New creates a caching repository around real.
func New(real catalog.Repository, rdb *redis.Client, log *logger.Logger) *Repository {
	return &Repository{real: real, redis: rdb, log: log}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (r *Repository) invalidate(ctx context.Context, id int64) {
	if err := r.redis.Del(ctx, productKey(id), keyAll).Err(); err != nil {
		r.log.Error(ctx, "cache invalidate", "id", id, "error", err)
	}
}

// List returns all products, from cache when possible.
func (r *Repository) List(ctx context.Context) ([]catalog.Product, error) {
	data, err := r.redis.Get(ctx, keyAll).Bytes()
	if err == nil {
		var products []catalog.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		r.log.Error(ctx, "cache get", "key", keyAll, "error", err)
	}

	products, err := r.real.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(products); err == nil {
		if err := r.redis.Set(ctx, keyAll, data, listTTL).Err(); err != nil {
			r.log.Error(ctx, "cache set", "key", keyAll, "error", err)
		}
	}
	return products, nil
}

// Get retrieves a product by ID, from cache when possible. A cached entry
// may trail a concurrent stock adjustment by up to productTTL.
func (r *Repository) Get(ctx context.Context, id int64) (catalog.Product, error) {
	key := productKey(id)
	data, err := r.redis.Get(ctx, key).Bytes()
	if err == nil {
		var p catalog.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		r.log.Error(ctx, "cache get", "key", key, "error", err)
	}

	p, err := r.real.Get(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := r.redis.Set(ctx, key, data, productTTL).Err(); err != nil {
			r.log.Error(ctx, "cache set", "key", key, "error", err)
		}
	}
	return p, nil
}

// Create stores a new product and drops the list cache.
func (r *Repository) Create(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	created, err := r.real.Create(ctx, p)
	if err != nil {
		return catalog.Product{}, err
	}
	r.invalidate(ctx, created.ID)
	return created, nil
}

// Update merges the patch into the product and invalidates its cache entry.
func (r *Repository) Update(ctx context.Context, id int64, patch catalog.Patch) (catalog.Product, error) {
	p, err := r.real.Update(ctx, id, patch)
	r.invalidate(ctx, id)
	return p, err
}

// Delete removes a product and invalidates its cache entry.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	err := r.real.Delete(ctx, id)
	r.invalidate(ctx, id)
	return err
}

// AdjustStock delegates to the underlying atomic update and invalidates the
// product's cache entry so readers see the new stock.
func (r *Repository) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	stock, err := r.real.AdjustStock(ctx, id, delta)
	r.invalidate(ctx, id)
	return stock, err
}
