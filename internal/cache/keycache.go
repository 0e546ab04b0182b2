// Package cache provides CEK caching so repeated unwrap round trips aren't
// needed for reads of the same wrapped CEK: a local ristretto-backed cache
// for single-process deployments, and a Redis-backed cache for ones that
// fan out across processes.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// KeyCache caches unwrapped CEKs locally, keyed by a caller-chosen cache
// key (typically a hash of the wrapped CEK bytes, never the plaintext).
// Entries expire after ttl regardless of how often they're hit, bounding
// how long a compromised process memory dump stays useful.
type KeyCache struct {
	store *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

// NewKeyCache builds a KeyCache sized for roughly maxEntries items and a
// per-entry lifetime of ttl.
func NewKeyCache(maxEntries int64, ttl time.Duration) (*KeyCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &KeyCache{store: store, ttl: ttl}, nil
}

// Get returns the cached CEK for key, or ok=false on a miss or expiry.
func (c *KeyCache) Get(key string) (cek []byte, ok bool) {
	return c.store.Get(key)
}

// Set caches cek under key for this cache's configured TTL. The caller
// retains ownership of cek; KeyCache does not copy it.
func (c *KeyCache) Set(key string, cek []byte) {
	c.store.SetWithTTL(key, cek, 1, c.ttl)
}

// Delete evicts key immediately, e.g. after a KeyCommitmentMismatch that
// suggests the cached CEK should not be trusted again.
func (c *KeyCache) Delete(key string) {
	c.store.Del(key)
}

// Clear evicts every entry.
func (c *KeyCache) Clear() {
	c.store.Clear()
}

// Close releases background goroutines owned by the underlying cache.
func (c *KeyCache) Close() {
	c.store.Close()
}
