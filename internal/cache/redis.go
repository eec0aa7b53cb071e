package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_storefront/internal/domain"
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// catalogRevKey versions every snapshot key. Snapshots bake in catalog
// prices, so a catalog write bumps the revision and orphans all cached
// entries at once; the orphans age out by TTL.
const catalogRevKey = "catalog:rev"

func (r RedisCache) catalogRev(ctx context.Context) string {
	rev, err := r.client.Get(ctx, catalogRevKey).Result()
	if err != nil {
		return "0"
	}
	return rev
}

// InvalidateAll shifts the snapshot keyspace to a fresh catalog revision.
func (r RedisCache) InvalidateAll(ctx context.Context) error {
	if err := r.client.Incr(ctx, catalogRevKey).Err(); err != nil {
		return fmt.Errorf("redis incr failed: %w", err)
	}
	return nil
}

func (r RedisCache) Get(ctx context.Context, userRef string) (*domain.CartSnapshot, error) {
	key := cacheKey(r.catalogRev(ctx), userRef)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snap domain.CartSnapshot
	if e2 := json.Unmarshal(data, &snap); e2 != nil {
		return nil, fmt.Errorf("unmarshal snapshot failed: %w", e2)
	}

	return &snap, nil
}

func (r RedisCache) Set(ctx context.Context, userRef string, snap *domain.CartSnapshot) error {
	key := cacheKey(r.catalogRev(ctx), userRef)
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}

	// Jitter spreads expirations so a burst of carts does not refill at once.
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	if e2 := r.client.Set(ctx, key, data, ttl).Err(); e2 != nil {
		return fmt.Errorf("redis set failed: %w", e2)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, userRef string) error {
	key := cacheKey(r.catalogRev(ctx), userRef)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func cacheKey(rev, userRef string) string {
	return fmt.Sprintf("cart-snapshot:%s:%s", rev, userRef)
}
