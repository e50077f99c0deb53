package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore implements DocumentStore with in-memory storage.
// Failure hooks let tests simulate remote errors per operation.
type MemoryStore struct {
	mu       sync.RWMutex
	order    []string                  // product ids in insertion order
	products map[string]domain.Product // productID -> product
	orders   map[string]domain.Order   // orderID -> order
	calls    int

	ListErr   error
	CreateErr error
	UpdateErr map[string]error // productID -> error returned by UpdateQuantity
}

func NewMemoryStore(products ...domain.Product) *MemoryStore {
	s := &MemoryStore{
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		UpdateErr: make(map[string]error),
	}
	for _, p := range products {
		s.put(p)
	}
	return s
}

func (s *MemoryStore) put(p domain.Product) {
	if _, exists := s.products[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.products[p.ID] = p
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	result := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.products[id])
	}
	return result, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}

func (s *MemoryStore) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.UpdateErr[id]; err != nil {
		return err
	}
	p, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.Quantity = quantity
	s.products[id] = p
	return nil
}

func (s *MemoryStore) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.CreateErr != nil {
		return "", s.CreateErr
	}

	id := uuid.NewString()
	order.ID = id
	order.CreatedAt = time.Now().UTC()
	s.orders[id] = order
	return id, nil
}

func (s *MemoryStore) UpsertProduct(_ context.Context, product domain.Product) error {
	if product.ID == "" {
		return fmt.Errorf("product id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(product)
	return nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// Order returns a stored order by id.
func (s *MemoryStore) Order(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *MemoryStore) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		result = append(result, o)
	}
	return result
}

// Calls counts remote-style operations served so far.
func (s *MemoryStore) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}
