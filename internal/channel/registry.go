package channel

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/config"
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/provider"
)

// Factory constructs a channel handle for one (business context, name)
// pair, or returns nil when the channel cannot be constructed (no config,
// missing endpoint). Construction failure never raises past the registry.
type Factory func(businessCtx string, name domain.ChannelName) Channel

// NewFactory builds the default factory: it resolves provider config
// through the injected ContextConfigProvider and wires an HTTP transmitter
// per channel. Config is consulted once per handle, at construction.
func NewFactory(cfgp config.ContextConfigProvider, timeout time.Duration, logger *zap.Logger) Factory {
	return func(businessCtx string, name domain.ChannelName) Channel {
		pc, ok := cfgp.ChannelConfig(businessCtx, name)
		if !ok || pc.Endpoint == "" {
			logger.Debug("channel not configured",
				zap.String("business_ctx", businessCtx),
				zap.String("channel", string(name)),
			)
			return nil
		}
		tx := provider.NewHTTPTransmitter(pc.Endpoint, pc.APIKey, timeout)
		return New(name, tx, pc.Enabled)
	}
}

type registryKey struct {
	businessCtx string
	name        domain.ChannelName
}

// entry wraps a lazily constructed handle. The sync.Once runs the factory
// at most once per key without holding the registry's map lock, so slow
// construction of one channel never serialises unrelated channels.
type entry struct {
	once   sync.Once
	handle Channel
}

// Registry lazily constructs and caches channel handles per
// (business context, channel name). Handles live until evicted and are
// never shared across business contexts.
type Registry struct {
	mu      sync.RWMutex
	entries map[registryKey]*entry
	factory Factory
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		entries: make(map[registryKey]*entry),
		factory: factory,
	}
}

// Get returns the cached handle for the pair, constructing it on first
// use. A nil return means "channel unavailable"; callers must not treat
// it as an error.
func (r *Registry) Get(businessCtx string, name domain.ChannelName) Channel {
	key := registryKey{businessCtx, name}

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if e, ok = r.entries[key]; !ok {
			e = &entry{}
			r.entries[key] = e
		}
		r.mu.Unlock()
	}

	e.once.Do(func() {
		e.handle = r.factory(businessCtx, name)
	})
	return e.handle
}

// Evict drops the cached handle so the next Get reconstructs it with
// fresh config (credential rotation, toggle flips).
func (r *Registry) Evict(businessCtx string, name domain.ChannelName) {
	r.mu.Lock()
	delete(r.entries, registryKey{businessCtx, name})
	r.mu.Unlock()
}
