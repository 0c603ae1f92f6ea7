package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hireloop/notify-engine/internal/dispatch"
	"github.com/hireloop/notify-engine/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MessagesSent        *prometheus.CounterVec
	MessagesFailed      *prometheus.CounterVec
	FallbacksActivated  *prometheus.CounterVec
	InitiationsSent     *prometheus.CounterVec
	RateLimitSkips      *prometheus.CounterVec
	DispatchLatency     *prometheus.HistogramVec
	QueueDepthHigh      prometheus.Gauge
	QueueDepthNormal    prometheus.Gauge
	QueueDepthLow       prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total messages delivered, labelled by carrying channel.",
		}, []string{"channel"}),

		MessagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_failed_total",
			Help: "Total terminally failed deliveries per requested channel (fallback chain exhausted).",
		}, []string{"channel"}),

		FallbacksActivated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fallbacks_activated_total",
			Help: "Times a fallback link was entered after the preceding channel failed.",
		}, []string{"from", "to"}),

		InitiationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "initiations_sent_total",
			Help: "Opt-in initiation messages transmitted per channel.",
		}, []string{"channel"}),

		RateLimitSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_skips_total",
			Help: "Chain links skipped because the channel's minimum send interval had not elapsed.",
		}, []string{"channel"}),

		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_channel_seconds",
			Help:    "Per-target latency from chain start to final result.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		QueueDepthHigh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_high",
			Help: "Current number of jobs in the high-priority queue.",
		}),
		QueueDepthNormal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_normal",
			Help: "Current number of jobs in the normal-priority queue.",
		}),
		QueueDepthLow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_low",
			Help: "Current number of jobs in the low-priority queue.",
		}),
	}

	reg.MustRegister(
		m.MessagesSent,
		m.MessagesFailed,
		m.FallbacksActivated,
		m.InitiationsSent,
		m.RateLimitSkips,
		m.DispatchLatency,
		m.QueueDepthHigh,
		m.QueueDepthNormal,
		m.QueueDepthLow,
	)

	return m
}

// OrchestratorHooks returns the callback set expected by the dispatcher.
// Centralises the prometheus observation calls so dispatch stays
// metrics-agnostic.
func (m *Metrics) OrchestratorHooks() dispatch.Hooks {
	return dispatch.Hooks{
		OnSent: func(ch domain.ChannelName, latency time.Duration) {
			m.MessagesSent.WithLabelValues(string(ch)).Inc()
			m.DispatchLatency.WithLabelValues(string(ch)).Observe(latency.Seconds())
		},
		OnFailed: func(ch domain.ChannelName) {
			m.MessagesFailed.WithLabelValues(string(ch)).Inc()
		},
		OnFallback: func(from, to domain.ChannelName) {
			m.FallbacksActivated.WithLabelValues(string(from), string(to)).Inc()
		},
		OnInitiation: func(ch domain.ChannelName) {
			m.InitiationsSent.WithLabelValues(string(ch)).Inc()
		},
		OnRateLimited: func(ch domain.ChannelName) {
			m.RateLimitSkips.WithLabelValues(string(ch)).Inc()
		},
	}
}
