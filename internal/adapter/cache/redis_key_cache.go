package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/redis/go-redis/v9"

	"github.com/inkwellhq/inkwell/internal/adapter/provider"
)

const (
	googleKeysCacheKey = "oauth:google:jwks"
	googleKeysTTL      = time.Hour
)

// keyStore is the slice of the Redis API the cache touches.
type keyStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisKeyCache caches Google's signing keys in Redis so One-Tap credential
// verification does not hit the certs endpoint on every login. Google rotates
// keys on the order of days, so a one hour TTL is comfortably fresh.
type RedisKeyCache struct {
	client keyStore
	source provider.KeySource
}

var _ provider.KeySource = (*RedisKeyCache)(nil)

// NewRedisKeyCache wraps source with a Redis-backed cache.
func NewRedisKeyCache(client keyStore, source provider.KeySource) *RedisKeyCache {
	return &RedisKeyCache{client: client, source: source}
}

// Keys returns the cached key set, refreshing it from the source on a miss.
// Redis failures on either read or write are non-fatal; the source stays
// authoritative and verification keeps working without the cache.
func (c *RedisKeyCache) Keys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	raw, err := c.client.Get(ctx, googleKeysCacheKey).Bytes()
	if err == nil {
		var keySet jose.JSONWebKeySet
		if err := json.Unmarshal(raw, &keySet); err == nil && len(keySet.Keys) > 0 {
			return &keySet, nil
		}
	}

	keySet, err := c.source.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch signing keys: %w", err)
	}

	if payload, err := json.Marshal(keySet); err == nil {
		_ = c.client.Set(ctx, googleKeysCacheKey, payload, googleKeysTTL).Err()
	}

	return keySet, nil
}
