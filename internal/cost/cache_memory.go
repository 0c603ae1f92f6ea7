package cost

import (
	"context"
	"sync"
	"time"

	"github.com/hireloop/notify-engine/internal/domain"
)

type memoryEntry struct {
	ts        time.Time
	expiresAt time.Time
}

// MemoryCache is a process-local Cache for single-instance deployments
// and tests. Expired entries are dropped lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func cacheKey(ch domain.ChannelName, sender string) string {
	return string(ch) + ":" + sender
}

func (c *MemoryCache) GetLastInbound(_ context.Context, ch domain.ChannelName, sender string) (time.Time, bool, error) {
	key := cacheKey(ch, sender)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return time.Time{}, false, nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return time.Time{}, false, nil
	}
	return e.ts, true, nil
}

func (c *MemoryCache) SetLastInbound(_ context.Context, ch domain.ChannelName, sender string, ts time.Time, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[cacheKey(ch, sender)] = memoryEntry{ts: ts, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// compile-time check that MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
