package store

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, qty int) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: decimal.NewFromInt(10), Quantity: qty}
}

func TestMemoryStore_ListKeepsInsertionOrder(t *testing.T) {
	s := NewMemoryStore(product("b", 1), product("a", 2), product("c", 0))

	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "b", products[0].ID)
	assert.Equal(t, "a", products[1].ID)
	assert.Equal(t, "c", products[2].ID)
}

func TestMemoryStore_UpdateQuantity(t *testing.T) {
	s := NewMemoryStore(product("a", 5))
	ctx := context.Background()

	require.NoError(t, s.UpdateQuantity(ctx, "a", 3))
	p, err := s.GetProduct(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Quantity)

	assert.ErrorIs(t, s.UpdateQuantity(ctx, "missing", 1), ErrProductNotFound)
}

func TestMemoryStore_UpdateFailureHook(t *testing.T) {
	s := NewMemoryStore(product("a", 5))
	s.UpdateErr["a"] = errors.New("unavailable")

	assert.ErrorContains(t, s.UpdateQuantity(context.Background(), "a", 1), "unavailable")
	p, _ := s.GetProduct(context.Background(), "a")
	assert.Equal(t, 5, p.Quantity)
}

func TestMemoryStore_CreateOrderAssignsIDAndTimestamp(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.CreateOrder(context.Background(), domain.Order{Status: domain.OrderStatusPending})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	o, ok := s.Order(id)
	require.True(t, ok)
	assert.Equal(t, id, o.ID)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore(product("a", 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListProducts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeed(t *testing.T) {
	s := NewMemoryStore()
	err := Seed(context.Background(), s, []domain.Product{product("a", 1), product("b", 2)})
	require.NoError(t, err)

	products, _ := s.ListProducts(context.Background())
	assert.Len(t, products, 2)

	err = Seed(context.Background(), s, []domain.Product{{Name: "no id"}})
	assert.Error(t, err)
}
