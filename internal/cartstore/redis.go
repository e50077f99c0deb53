package cartstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/redis/go-redis/v9"
)

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// RedisStore keeps each session cart under "cart:<session>". Every save
// refreshes the TTL; ttl 0 keeps the slot forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisStore) Load(ctx context.Context, key string) domain.Cart {
	data, err := r.client.Get(ctx, slotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}
	}
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session", key).Msg("redis get cart failed, starting empty")
		return domain.Cart{}
	}

	cart, err := Decode(data)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session", key).Msg("discarding malformed cart slot")
		return domain.Cart{}
	}
	return cart
}

func (r *RedisStore) Save(ctx context.Context, key string, cart domain.Cart) error {
	data, err := Encode(cart)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, slotKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
