package ratelimiter

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/hireloop/notify-engine/internal/domain"
)

// ChannelLimiters holds one token bucket limiter per channel name, sized
// for a minimum inter-send interval: refill rate 1/interval, burst 1. The
// effect is "at most one send per interval per channel", which is what
// providers ban-hammer on.
//
// This is advisory local throttling, not a distributed token bucket; each
// process owns its own channel handles, so process-local state is enough.
type ChannelLimiters struct {
	limiters map[domain.ChannelName]*rate.Limiter
}

// New creates a ChannelLimiters from per-channel minimum intervals.
// Channels absent from the map fall back to defaultInterval.
func New(intervals map[domain.ChannelName]time.Duration, defaultInterval time.Duration) *ChannelLimiters {
	limiters := make(map[domain.ChannelName]*rate.Limiter, len(domain.AllChannels()))
	for _, ch := range domain.AllChannels() {
		interval := defaultInterval
		if iv, ok := intervals[ch]; ok && iv > 0 {
			interval = iv
		}
		limiters[ch] = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &ChannelLimiters{limiters: limiters}
}

// Allow reports whether a send on the channel may proceed now, consuming
// the token if so. It never blocks: a denied send is skipped to the next
// fallback link, not queued. Each limiter is internally synchronised, so
// concurrent dispatches on different channels never contend.
func (cl *ChannelLimiters) Allow(ch domain.ChannelName) bool {
	l, ok := cl.limiters[ch]
	if !ok {
		return true
	}
	return l.Allow()
}
