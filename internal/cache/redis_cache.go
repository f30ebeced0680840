package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"storestock/backend/internal/domain"
	"storestock/backend/internal/logger"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

// RedisCartStore keeps each cart as one JSON blob under prefix+key and
// refreshes its TTL on every write.
type RedisCartStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (c *RedisCache) CartStore(prefix string, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: c.client, prefix: prefix, ttl: ttl}
}

// Load returns an empty cart when the blob is missing or unreadable.
func (s *RedisCartStore) Load(ctx context.Context, key string) (domain.Cart, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{Items: []domain.CartLine{}}, nil
	}
	if err != nil {
		return domain.Cart{}, err
	}

	var cart domain.Cart
	if err := json.Unmarshal(val, &cart); err != nil {
		logger.Warn(ctx, "discarding unreadable cart blob", "component", "cart", "key", key, "error", err)
		return domain.Cart{Items: []domain.CartLine{}}, nil
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	return cart, nil
}

func (s *RedisCartStore) Save(ctx context.Context, key string, cart domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, payload, s.ttl).Err()
}

func (s *RedisCartStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
