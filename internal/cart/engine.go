package cart

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/cartstore"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/shopspring/decimal"
)

// ProductLookup is the read side of the catalog the engine needs.
type ProductLookup interface {
	Product(id string) (domain.Product, bool)
}

// Engine owns one session's cart. Every successful mutation is written to
// the cart slot; a failed write is logged and the in-memory cart is kept.
// At most one checkout runs per engine at a time.
type Engine struct {
	mu       sync.Mutex
	checkout sync.Mutex
	catalog  ProductLookup
	store    cartstore.Store
	key      string
	cart     domain.Cart
}

// NewEngine restores the cart stored under key, or starts empty.
func NewEngine(ctx context.Context, catalog ProductLookup, store cartstore.Store, key string) *Engine {
	return &Engine{
		catalog: catalog,
		store:   store,
		key:     key,
		cart:    store.Load(ctx, key),
	}
}

// Add puts one unit of the product in the cart.
func (e *Engine) Add(ctx context.Context, productID string) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.add(ctx, productID)
	e.record(ctx, "add", productID, err)
	return e.cart.Clone(), err
}

func (e *Engine) add(ctx context.Context, productID string) error {
	product, ok := e.catalog.Product(productID)
	if !ok {
		return domain.ErrUnknownProduct
	}
	if !product.InStock() {
		return domain.ErrOutOfStock
	}

	if i, exists := e.cart.Find(productID); exists {
		line := &e.cart.Lines[i]
		if line.Quantity >= product.Quantity {
			return domain.ErrStockLimitReached
		}
		line.Quantity++
		line.MaxQuantity = product.Quantity
	} else {
		e.cart.Lines = append(e.cart.Lines, domain.CartLine{
			ID:          product.ID,
			Name:        product.Name,
			Price:       product.Price,
			Quantity:    1,
			MaxQuantity: product.Quantity,
			Image:       product.ImageURL,
		})
	}

	e.persist(ctx)
	return nil
}

// SetQuantity changes a line's quantity by delta. Reaching zero removes the
// line; going below zero or above the product's stock is rejected.
func (e *Engine) SetQuantity(ctx context.Context, productID string, delta int) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.setQuantity(ctx, productID, delta)
	e.record(ctx, "set_quantity", productID, err)
	return e.cart.Clone(), err
}

func (e *Engine) setQuantity(ctx context.Context, productID string, delta int) error {
	i, exists := e.cart.Find(productID)
	if !exists {
		return domain.ErrUnknownProduct
	}
	product, ok := e.catalog.Product(productID)
	if !ok {
		return domain.ErrUnknownProduct
	}

	newQuantity := e.cart.Lines[i].Quantity + delta
	switch {
	case newQuantity == 0:
		e.removeAt(i)
	case newQuantity > 0 && newQuantity <= product.Quantity:
		e.cart.Lines[i].Quantity = newQuantity
		e.cart.Lines[i].MaxQuantity = product.Quantity
	default:
		return domain.ErrStockLimitReached
	}

	e.persist(ctx)
	return nil
}

// Remove drops a line regardless of its quantity.
func (e *Engine) Remove(ctx context.Context, productID string) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if i, exists := e.cart.Find(productID); exists {
		e.removeAt(i)
		e.persist(ctx)
	} else {
		err = domain.ErrUnknownProduct
	}
	e.record(ctx, "remove", productID, err)
	return e.cart.Clone(), err
}

// Clear empties the cart and its slot.
func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cart = domain.Cart{}
	e.persist(ctx)
	e.record(ctx, "clear", "", nil)
}

// TryLockCheckout claims the cart for a checkout. It returns false while
// another checkout holds it.
func (e *Engine) TryLockCheckout() bool {
	return e.checkout.TryLock()
}

func (e *Engine) UnlockCheckout() {
	e.checkout.Unlock()
}

// RemoveOrdered takes the ordered quantities out of the cart. Lines added
// or raised after the snapshot keep the difference.
func (e *Engine) RemoveOrdered(ctx context.Context, ordered domain.Cart) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, line := range ordered.Lines {
		i, exists := e.cart.Find(line.ID)
		if !exists {
			continue
		}
		if rest := e.cart.Lines[i].Quantity - line.Quantity; rest > 0 {
			e.cart.Lines[i].Quantity = rest
		} else {
			e.removeAt(i)
		}
	}
	e.persist(ctx)
	e.record(ctx, "remove_ordered", "", nil)
}

func (e *Engine) removeAt(i int) {
	e.cart.Lines = append(e.cart.Lines[:i], e.cart.Lines[i+1:]...)
}

// Snapshot returns a copy of the cart.
func (e *Engine) Snapshot() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Total()
}

func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Count()
}

func (e *Engine) persist(ctx context.Context) {
	if err := e.store.Save(ctx, e.key, e.cart); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session", e.key).Msg("cart slot write failed")
	}
}

func (e *Engine) record(ctx context.Context, op, productID string, err error) {
	metrics.CartOperations.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		logger.Ctx(ctx).Debug().Err(err).Str("op", op).Str("product_id", productID).Msg("cart operation rejected")
	}
}
