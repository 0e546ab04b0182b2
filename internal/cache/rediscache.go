package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

// RedisKeyCache is a distributed alternative to KeyCache, for deployments
// that run many client processes against the same KMS key and want to
// share the unwrap cache between them rather than paying the KMS round
// trip once per process.
//
// Caching plaintext CEKs in Redis trusts the Redis deployment with
// key-grade secrets; callers that can't make that trust assumption should
// use the local-only KeyCache instead.
type RedisKeyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisKeyCache wraps an existing Redis client.
func NewRedisKeyCache(client *redis.Client, ttl time.Duration) *RedisKeyCache {
	return &RedisKeyCache{client: client, ttl: ttl}
}

// Get returns the cached CEK for key, or ok=false on a miss.
func (c *RedisKeyCache) Get(ctx context.Context, key string) (cek []byte, ok bool, err error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, cryptoerr.Wrap(cryptoerr.CryptoError, "redis GET failed", err)
	}
	return b, true, nil
}

// Set caches cek under key for this cache's configured TTL.
func (c *RedisKeyCache) Set(ctx context.Context, key string, cek []byte) error {
	if err := c.client.Set(ctx, key, cek, c.ttl).Err(); err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "redis SET failed", err)
	}
	return nil
}

// Delete evicts key immediately.
func (c *RedisKeyCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return cryptoerr.Wrap(cryptoerr.CryptoError, "redis DEL failed", err)
	}
	return nil
}
