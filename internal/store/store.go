package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

const (
	ProductsCollection = "products"
	OrdersCollection   = "orders"
)

// ProductStore is the catalog side of the external document store.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	// UpdateQuantity is a partial update of the product's quantity field.
	UpdateQuantity(ctx context.Context, id string, quantity int) error
}

// OrderStore inserts order documents and returns the generated id.
type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.Order) (string, error)
}

type DocumentStore interface {
	ProductStore
	OrderStore
	// UpsertProduct writes a full product document, used for seeding.
	UpsertProduct(ctx context.Context, product domain.Product) error
	Close(ctx context.Context) error
}

// Seed writes every product, stopping at the first failure.
func Seed(ctx context.Context, s DocumentStore, products []domain.Product) error {
	for _, p := range products {
		if err := s.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// DecodeProducts parses a JSON array of products and rejects entries the
// catalog could not serve.
func DecodeProducts(data []byte) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		switch {
		case strings.TrimSpace(p.ID) == "":
			return nil, fmt.Errorf("%w: entry %d has no id", ErrInvalidProduct, i)
		case p.Price.IsNegative():
			return nil, fmt.Errorf("%w: %s has a negative price", ErrInvalidProduct, p.ID)
		case p.Quantity < 0:
			return nil, fmt.Errorf("%w: %s has a negative quantity", ErrInvalidProduct, p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidProduct, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return products, nil
}
