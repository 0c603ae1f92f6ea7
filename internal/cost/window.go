package cost

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/domain"
)

// InboundSource is the slice of the persistence collaborator the tracker
// falls back to on cache miss.
type InboundSource interface {
	GetLastInboundMessage(ctx context.Context, ch domain.ChannelName, sender string) (time.Time, bool, error)
}

// Cache stores last-inbound timestamps with a TTL. Implementations:
// ValkeyCache for shared deployments, MemoryCache for single-process and
// tests.
type Cache interface {
	GetLastInbound(ctx context.Context, ch domain.ChannelName, sender string) (time.Time, bool, error)
	SetLastInbound(ctx context.Context, ch domain.ChannelName, sender string, ts time.Time, ttl time.Duration) error
}

// WindowTracker answers "is this recipient inside the free interaction
// window". Lookups are cache-first with DB fallback; a store hit is
// written back to the cache with TTL equal to the window length
// (refresh-on-miss, not refresh-on-inbound — the conservative tunable).
type WindowTracker struct {
	cache   Cache
	source  InboundSource
	window  time.Duration
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// TrackerConfig tunes the window tracker; zero values get defaults.
type TrackerConfig struct {
	Window        time.Duration
	LookupTimeout time.Duration
	Now           func() time.Time
}

func NewWindowTracker(cache Cache, source InboundSource, cfg TrackerConfig, logger *zap.Logger) *WindowTracker {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 3 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &WindowTracker{
		cache:   cache,
		source:  source,
		window:  cfg.Window,
		timeout: cfg.LookupTimeout,
		logger:  logger,
		now:     cfg.Now,
	}
}

// IsWithinFreeWindow reports whether the most recent inbound message from
// the recipient on the channel is within the window. No inbound message
// means false. Cache and store failures degrade to false rather than
// blocking dispatch — worst case we over-count billable conversations.
func (t *WindowTracker) IsWithinFreeWindow(ctx context.Context, ch domain.ChannelName, recipient string) bool {
	lookupCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	now := t.now()

	ts, ok, err := t.cache.GetLastInbound(lookupCtx, ch, recipient)
	if err != nil {
		t.logger.Warn("free-window cache read failed",
			zap.String("channel", string(ch)), zap.Error(err))
	} else if ok {
		return now.Sub(ts) < t.window
	}

	ts, ok, err = t.source.GetLastInboundMessage(lookupCtx, ch, recipient)
	if err != nil {
		t.logger.Warn("free-window store lookup failed",
			zap.String("channel", string(ch)), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	if err := t.cache.SetLastInbound(lookupCtx, ch, recipient, ts, t.window); err != nil {
		t.logger.Warn("free-window cache write failed",
			zap.String("channel", string(ch)), zap.Error(err))
	}

	return now.Sub(ts) < t.window
}
