package cartstore

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/domain"
)

// MemoryStore holds serialized slots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, key string) domain.Cart {
	m.mu.RLock()
	data, ok := m.slots[slotKey(key)]
	m.mu.RUnlock()
	if !ok {
		return domain.Cart{}
	}
	cart, err := Decode(data)
	if err != nil {
		return domain.Cart{}
	}
	return cart
}

func (m *MemoryStore) Save(_ context.Context, key string, cart domain.Cart) error {
	data, err := Encode(cart)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.slots[slotKey(key)] = data
	m.mu.Unlock()
	return nil
}

// Raw returns the serialized slot, for inspection.
func (m *MemoryStore) Raw(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.slots[slotKey(key)]
	return data, ok
}

// Put writes raw bytes into a slot.
func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	m.slots[slotKey(key)] = data
	m.mu.Unlock()
}
