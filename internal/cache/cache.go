// Package cache keeps read-mostly ledger data in memory with periodic
// refresh, so the sentinel and the read endpoints do not hammer the store
// on every tick or request.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/models"
)

// ProductCache caches products by id. Misses fall through to the ledger and
// populate the cache, so the sentinel sees a product band at most one fetch
// after the product appears.
type ProductCache struct {
	mu       sync.RWMutex
	products map[int64]*models.Product
	store    ledger.Products
}

func NewProductCache(store ledger.Products) *ProductCache {
	return &ProductCache{
		products: make(map[int64]*models.Product),
		store:    store,
	}
}

func (c *ProductCache) Get(ctx context.Context, id int64) (*models.Product, error) {
	c.mu.RLock()
	p, ok := c.products[id]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}
	p, err := c.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.products[id] = p
	c.mu.Unlock()
	return p, nil
}

// Invalidate drops a single entry, forcing a re-fetch on next access.
func (c *ProductCache) Invalidate(id int64) {
	c.mu.Lock()
	delete(c.products, id)
	c.mu.Unlock()
}

// ActiveOrdersCache holds the last full order listing.
type ActiveOrdersCache struct {
	mu     sync.RWMutex
	orders []*models.Order
}

func NewActiveOrdersCache() *ActiveOrdersCache {
	return &ActiveOrdersCache{}
}

func (c *ActiveOrdersCache) Refresh(ctx context.Context, store ledger.Orders) error {
	orders, err := store.ListOrders(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.orders = orders
	c.mu.Unlock()
	return nil
}

func (c *ActiveOrdersCache) Get() []*models.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orders
}

func (c *ActiveOrdersCache) StartAutoRefresh(ctx context.Context, store ledger.Orders, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Refresh(ctx, store); err != nil {
				logger.Error().Err(err).Msg("refreshing order cache")
			}
		case <-ctx.Done():
			return
		}
	}
}
