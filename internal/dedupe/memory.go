package dedupe

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process Store backed by a ttlcache with per-key TTLs.
// When capacity is reached the least recently marked key is evicted.
type Memory struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewMemory returns a Memory store holding at most capacity keys (0 = unbounded).
func NewMemory(capacity int) *Memory {
	return &Memory{
		cache: ttlcache.New[string, struct{}](
			ttlcache.WithCapacity[string, struct{}](uint64(max(capacity, 0))),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
	}
}

// MarkIfNew implements Store. A hit does not extend the key's TTL.
func (m *Memory) MarkIfNew(_ context.Context, key string, ttl time.Duration) (bool, error) {
	_, found := m.cache.GetOrSet(key, struct{}{}, ttlcache.WithTTL[string, struct{}](ttl))
	return !found, nil
}

// Len returns the number of live keys.
func (m *Memory) Len() int {
	m.cache.DeleteExpired()
	return m.cache.Len()
}
