package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

// Store is the durable per-session cart slot.
// Load never fails: an absent or malformed slot yields an empty cart.
type Store interface {
	Load(ctx context.Context, key string) domain.Cart
	Save(ctx context.Context, key string, cart domain.Cart) error
}

var ErrMalformedCart = errors.New("malformed cart slot")

// Encode serializes the cart as a JSON array of lines.
func Encode(cart domain.Cart) ([]byte, error) {
	lines := cart.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (domain.Cart, error) {
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrMalformedCart, err)
	}
	cart := domain.NewCart(lines...)
	if !cart.Valid() {
		return domain.Cart{}, ErrMalformedCart
	}
	return cart, nil
}

func slotKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}
