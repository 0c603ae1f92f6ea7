// Package dispatch implements the delivery engine's core algorithm:
// fallback-chain resolution, rate limiting, conversation gating, bounded
// retries with backoff, and per-attempt audit logging.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/channel"
	"github.com/hireloop/notify-engine/internal/cost"
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/gate"
	"github.com/hireloop/notify-engine/internal/provider"
	"github.com/hireloop/notify-engine/internal/ratelimiter"
)

// LogAppender is the slice of the persistence collaborator the dispatcher
// writes to. Append failures are logged and swallowed: audit-log health
// never decides delivery outcomes.
type LogAppender interface {
	AppendDeliveryLog(ctx context.Context, e *domain.DeliveryLogEntry) error
}

// Hooks carries the metric callbacks injected by main. Nil members are
// replaced with no-ops so the dispatcher never nil-checks them.
type Hooks struct {
	OnSent        func(ch domain.ChannelName, latency time.Duration)
	OnFailed      func(ch domain.ChannelName)
	OnFallback    func(from, to domain.ChannelName)
	OnInitiation  func(ch domain.ChannelName)
	OnRateLimited func(ch domain.ChannelName)
}

func (h *Hooks) fill() {
	if h.OnSent == nil {
		h.OnSent = func(domain.ChannelName, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.ChannelName) {}
	}
	if h.OnFallback == nil {
		h.OnFallback = func(domain.ChannelName, domain.ChannelName) {}
	}
	if h.OnInitiation == nil {
		h.OnInitiation = func(domain.ChannelName) {}
	}
	if h.OnRateLimited == nil {
		h.OnRateLimited = func(domain.ChannelName) {}
	}
}

// Config bounds the dispatcher's retry and timeout behaviour. The worst
// case for one target is RetryMaxAttempts × chain depth × ProviderTimeout
// plus backoff delays, all of which are capped here.
type Config struct {
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	ProviderTimeout  time.Duration
	StoreTimeout     time.Duration
}

func (c *Config) fill() {
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 8 * time.Second
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 10 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
}

// Orchestrator coordinates registry, gate, limiter, classifier, window
// tracker, and audit log for each dispatch call. It is safe for
// concurrent use: all mutable state lives in the injected components,
// each of which synchronises per key.
type Orchestrator struct {
	registry   *channel.Registry
	gate       *gate.Gate
	limiter    *ratelimiter.ChannelLimiters
	classifier *cost.Classifier
	window     *cost.WindowTracker
	log        LogAppender
	cfg        Config
	hooks      Hooks
	logger     *zap.Logger
}

func New(
	registry *channel.Registry,
	g *gate.Gate,
	limiter *ratelimiter.ChannelLimiters,
	classifier *cost.Classifier,
	window *cost.WindowTracker,
	log LogAppender,
	cfg Config,
	hooks Hooks,
	logger *zap.Logger,
) *Orchestrator {
	cfg.fill()
	hooks.fill()
	return &Orchestrator{
		registry:   registry,
		gate:       g,
		limiter:    limiter,
		classifier: classifier,
		window:     window,
		log:        log,
		cfg:        cfg,
		hooks:      hooks,
		logger:     logger,
	}
}

// Dispatch delivers the request to every target channel and returns one
// SendResult per requested channel name. Input errors (empty body,
// unknown channel) are reported synchronously; everything past validation
// is converted into per-channel results, never an error.
//
// Targets are processed concurrently — they hit independent providers —
// while each target's fallback chain is walked strictly sequentially.
func (o *Orchestrator) Dispatch(ctx context.Context, businessCtx string, req domain.DispatchRequest) (map[domain.ChannelName]domain.SendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	targets := req.Channels
	if len(targets) == 0 {
		targets = o.enabledChannels(businessCtx)
		if len(targets) == 0 {
			return nil, domain.ErrNoChannels
		}
	}

	dispatchID := uuid.New().String()
	msg := req.Message()

	results := make(map[domain.ChannelName]domain.SendResult, len(targets))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target domain.ChannelName) {
			defer wg.Done()
			res := o.deliver(ctx, businessCtx, dispatchID, target, req.Recipient, msg, req.FlowType)
			mu.Lock()
			results[target] = res
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	return results, nil
}

// enabledChannels resolves the "all enabled" default target list.
func (o *Orchestrator) enabledChannels(businessCtx string) []domain.ChannelName {
	var enabled []domain.ChannelName
	for _, ch := range domain.AllChannels() {
		if h := o.registry.Get(businessCtx, ch); h != nil && h.IsEnabled() {
			enabled = append(enabled, ch)
		}
	}
	return enabled
}

// deliver walks one target's fallback chain. The returned result is keyed
// by the requested name; ActualChannel records which link carried (or
// last attempted) the message.
func (o *Orchestrator) deliver(
	ctx context.Context,
	businessCtx, dispatchID string,
	target domain.ChannelName,
	recipient string,
	msg domain.Message,
	flowType string,
) domain.SendResult {
	start := time.Now()
	log := o.logger.With(
		zap.String("dispatch_id", dispatchID),
		zap.String("target", string(target)),
	)

	last := domain.SendResult{
		Channel:     target,
		Reason:      domain.ReasonChannelUnavailable,
		Error:       "no usable channel in fallback chain",
		AttemptedAt: start,
		CompletedAt: start,
	}

	chain := domain.FallbackChain(target)
	attempted := false

	for i, link := range chain {
		h := o.registry.Get(businessCtx, link)
		if h == nil || !h.IsEnabled() {
			log.Debug("chain link unavailable", zap.String("link", string(link)))
			continue
		}

		if !o.limiter.Allow(link) {
			// Throttled, not failed: move down the chain.
			o.hooks.OnRateLimited(link)
			log.Debug("chain link throttled", zap.String("link", string(link)))
			last = domain.SendResult{
				Channel:       target,
				ActualChannel: link,
				Reason:        domain.ReasonRateLimited,
				Error:         "minimum send interval not elapsed",
				AttemptedAt:   time.Now().UTC(),
				CompletedAt:   time.Now().UTC(),
			}
			continue
		}

		if attempted && i > 0 {
			o.hooks.OnFallback(chain[i-1], link)
		}
		attempted = true

		cls := o.classify(ctx, link, recipient, msg, flowType)

		if link.RequiresInitiation() && !o.gate.CanSend(ctx, link, recipient) {
			return o.sendInitiation(ctx, h, dispatchID, target, recipient, msg, cls, log)
		}

		res := o.attemptWithRetry(ctx, h, dispatchID, recipient, msg, cls, log)
		res.Channel = target
		if res.Success {
			log.Info("delivered",
				zap.String("via", string(link)),
				zap.String("provider_msg_id", res.ProviderMsgID),
				zap.Duration("latency", time.Since(start)),
			)
			o.hooks.OnSent(link, time.Since(start))
			return res
		}

		log.Warn("chain link failed, falling back",
			zap.String("link", string(link)),
			zap.String("error", res.Error),
		)
		last = res
	}

	o.hooks.OnFailed(target)
	log.Warn("fallback chain exhausted", zap.String("reason", string(last.Reason)))
	return last
}

// sendInitiation runs the gate's opt-in flow instead of the real payload
// and maps the outcome to a caller-facing result. An initiation attempt
// ends the chain for this target: cascading opt-in prompts across several
// gated platforms in one dispatch call would spam the recipient.
func (o *Orchestrator) sendInitiation(
	ctx context.Context,
	h channel.Channel,
	dispatchID string,
	target domain.ChannelName,
	recipient string,
	msg domain.Message,
	cls domain.CostClassification,
	log *zap.Logger,
) domain.SendResult {
	link := h.Name()
	res := o.gate.SendInitiation(ctx, h, recipient)

	final := domain.SendResult{
		Channel:       target,
		ActualChannel: link,
		Success:       false,
		Reason:        domain.ReasonInitiationRequired,
		Error:         res.Error,
		Attempts:      res.Attempts,
		AttemptedAt:   res.AttemptedAt,
		CompletedAt:   res.CompletedAt,
	}

	switch res.Reason {
	case domain.ReasonInitiationBudget, domain.ReasonInitiationPending:
		// Refused before any transmission: nothing to log or count.
		final.Reason = res.Reason
		return final
	}

	o.hooks.OnInitiation(link)
	o.appendLog(ctx, &domain.DeliveryLogEntry{
		ID:            uuid.New().String(),
		DispatchID:    dispatchID,
		Channel:       link,
		Recipient:     recipient,
		BodyHash:      bodyHash(msg.Body),
		Kind:          domain.LogKindInitiation,
		Success:       res.Success,
		ProviderMsgID: res.ProviderMsgID,
		Error:         res.Error,
		Cost:          cls,
		AttemptedAt:   res.AttemptedAt,
	}, log)

	log.Info("initiation sent instead of payload",
		zap.String("channel", string(link)),
		zap.Bool("initiation_delivered", res.Success),
	)
	return final
}

// attemptWithRetry sends on one chain link with bounded retries. Only
// transient failures (timeouts, network errors, provider 5xx) are
// retried; permanent rejections fall through to the next link at once.
// Every attempt writes one delivery-log entry.
func (o *Orchestrator) attemptWithRetry(
	ctx context.Context,
	h channel.Channel,
	dispatchID, recipient string,
	msg domain.Message,
	cls domain.CostClassification,
	log *zap.Logger,
) domain.SendResult {
	var (
		res domain.SendResult
		err error
	)
	for attempt := 0; attempt < o.cfg.RetryMaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
		res, err = h.Send(callCtx, recipient, msg)
		cancel()
		res.Attempts = attempt + 1

		o.appendLog(ctx, &domain.DeliveryLogEntry{
			ID:            uuid.New().String(),
			DispatchID:    dispatchID,
			Channel:       h.Name(),
			Recipient:     recipient,
			BodyHash:      bodyHash(msg.Body),
			Kind:          domain.LogKindMessage,
			Success:       res.Success,
			ProviderMsgID: res.ProviderMsgID,
			Error:         res.Error,
			Cost:          cls,
			AttemptedAt:   res.AttemptedAt,
		}, log)

		if err == nil {
			return res
		}
		if !provider.IsTransient(err) {
			log.Debug("permanent failure, no retry",
				zap.String("channel", string(h.Name())), zap.Error(err))
			return res
		}
		if attempt == o.cfg.RetryMaxAttempts-1 {
			break
		}

		delay := o.backoff(attempt)
		log.Debug("transient failure, backing off",
			zap.String("channel", string(h.Name())),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return res
		}
	}
	return res
}

// backoff computes base × 2^attempt capped at RetryMaxDelay.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	delay := o.cfg.RetryBaseDelay << uint(attempt)
	if delay > o.cfg.RetryMaxDelay || delay <= 0 {
		delay = o.cfg.RetryMaxDelay
	}
	return delay
}

// classify computes the cost classification attached to every log entry
// for this link. The free-window lookup only runs for conversation-billed
// channels; per-message channels carry the flag as false.
func (o *Orchestrator) classify(
	ctx context.Context,
	link domain.ChannelName,
	recipient string,
	msg domain.Message,
	flowType string,
) domain.CostClassification {
	cls := o.classifier.Classify(msg.Body, cost.Context{
		FlowType: flowType,
		Channel:  link,
		HasMedia: len(msg.Attachments) > 0,
	})
	if link.ConversationBilled() {
		cls.FreeWindow = o.window.IsWithinFreeWindow(ctx, link, recipient)
	}
	return cls
}

// appendLog writes one audit entry with a bounded timeout. Failures are
// logged and dropped: the dispatch outcome is independent of audit-log
// health.
func (o *Orchestrator) appendLog(ctx context.Context, e *domain.DeliveryLogEntry, log *zap.Logger) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StoreTimeout)
	defer cancel()
	if err := o.log.AppendDeliveryLog(storeCtx, e); err != nil {
		log.Warn("delivery log append failed",
			zap.String("channel", string(e.Channel)), zap.Error(err))
	}
}

func bodyHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
