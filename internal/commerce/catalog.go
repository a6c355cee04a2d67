package commerce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// CatalogTTL is how long a fetched product or promotion list stays fresh.
const CatalogTTL = 30 * time.Minute

// CachedCatalog caches the product and promotion lists in front of a Client.
// On fetch failure a stale cache is served rather than an error; only a cold
// cache propagates the failure.
type CachedCatalog struct {
	client Client
	now    func() time.Time

	mu           sync.Mutex
	products     []models.Product
	productsAt   time.Time
	promotions   []models.Promotion
	promotionsAt time.Time
}

// NewCachedCatalog wraps client with a catalog cache.
func NewCachedCatalog(client Client) *CachedCatalog {
	return &CachedCatalog{client: client, now: time.Now}
}

// Products returns the cached product list, refreshing it when older than
// CatalogTTL.
func (c *CachedCatalog) Products(ctx context.Context) ([]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.products != nil && c.now().Sub(c.productsAt) < CatalogTTL {
		return c.products, nil
	}

	products, err := c.client.ListProducts(ctx)
	if err != nil {
		if c.products != nil {
			slog.Warn("CachedCatalog serving stale products", "error", err, "age", c.now().Sub(c.productsAt))
			return c.products, nil
		}
		return nil, err
	}
	c.products = products
	c.productsAt = c.now()
	slog.Debug("CachedCatalog products refreshed", "count", len(products))
	return c.products, nil
}

// Promotions returns the cached promotion list, refreshing it when older
// than CatalogTTL.
func (c *CachedCatalog) Promotions(ctx context.Context) ([]models.Promotion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.promotions != nil && c.now().Sub(c.promotionsAt) < CatalogTTL {
		return c.promotions, nil
	}

	promos, err := c.client.ListPromotions(ctx)
	if err != nil {
		if c.promotions != nil {
			slog.Warn("CachedCatalog serving stale promotions", "error", err, "age", c.now().Sub(c.promotionsAt))
			return c.promotions, nil
		}
		return nil, err
	}
	c.promotions = promos
	c.promotionsAt = c.now()
	slog.Debug("CachedCatalog promotions refreshed", "count", len(promos))
	return c.promotions, nil
}

// Refresh forces both lists to be refetched. Used by the background refresh
// job; errors are logged by the caller.
func (c *CachedCatalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.productsAt = time.Time{}
	c.promotionsAt = time.Time{}
	c.mu.Unlock()

	if _, err := c.Products(ctx); err != nil {
		return err
	}
	_, err := c.Promotions(ctx)
	return err
}
