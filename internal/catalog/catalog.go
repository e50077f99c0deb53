package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/store"
	"golang.org/x/sync/singleflight"
)

const loadKey = "catalog"

// Catalog is the read-only product snapshot shared by all sessions.
type Catalog struct {
	source store.ProductStore

	mu       sync.RWMutex
	products []domain.Product
	index    map[string]int
	loadedAt time.Time

	sfg singleflight.Group // collapses concurrent loads
}

func New(source store.ProductStore) *Catalog {
	return &Catalog{
		source: source,
		index:  make(map[string]int),
	}
}

// Load replaces the snapshot with the store's current products.
// On failure the previous snapshot (possibly empty) is kept.
func (c *Catalog) Load(ctx context.Context) error {
	_, err, _ := c.sfg.Do(loadKey, func() (interface{}, error) {
		products, err := c.source.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		c.replace(products)
		return nil, nil
	})
	if err != nil {
		metrics.CatalogLoadFailures.Inc()
		logger.Ctx(ctx).Error().Err(err).Msg("catalog load failed")
		return fmt.Errorf("%w: %w", domain.ErrCatalogLoadFailed, err)
	}
	return nil
}

func (c *Catalog) replace(products []domain.Product) {
	index := make(map[string]int, len(products))
	snapshot := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if i, dup := index[p.ID]; dup {
			snapshot[i] = p
			continue
		}
		index[p.ID] = len(snapshot)
		snapshot = append(snapshot, p)
	}

	c.mu.Lock()
	c.products = snapshot
	c.index = index
	c.loadedAt = time.Now()
	c.mu.Unlock()

	metrics.CatalogProducts.Set(float64(len(snapshot)))
}

// Product looks up a product in the current snapshot.
func (c *Catalog) Product(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// Products returns a copy of the snapshot in store order.
func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]domain.Product, len(c.products))
	copy(result, c.products)
	return result
}

// Featured returns the first n products.
func (c *Catalog) Featured(n int) []domain.Product {
	products := c.Products()
	if n < 0 {
		n = 0
	}
	if n < len(products) {
		products = products[:n]
	}
	return products
}

// Search matches the term against product names, ignoring case.
// An empty term matches everything.
func (c *Catalog) Search(term string) []domain.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	products := c.Products()
	if term == "" {
		return products
	}

	result := make([]domain.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) {
			result = append(result, p)
		}
	}
	return result
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Run refreshes the snapshot every interval until ctx is done.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().Dur("interval", interval).Msg("catalog refresh started")

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("catalog refresh stopped")
			return
		case <-ticker.C:
			// failure already logged; last snapshot stays in place
			_ = c.Load(ctx)
		}
	}
}

// SearchURL forwards a search term to the catalog page as a query parameter.
func SearchURL(page, term string) string {
	escaped := url.QueryEscape(strings.ToLower(strings.TrimSpace(term)))
	return page + "?search=" + strings.ReplaceAll(escaped, "+", "%20")
}
