// Package gate enforces conversation-initiation rules for channels that
// forbid unsolicited outbound messages. A recipient must have messaged us
// on the platform inside the initiation window before the real payload may
// be sent; until then the gate only permits a bounded number of fixed
// opt-in prompts.
package gate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/channel"
	"github.com/hireloop/notify-engine/internal/domain"
)

// InboundSource is the slice of the persistence collaborator the gate
// reads: the timestamp of the recipient's latest inbound message.
type InboundSource interface {
	GetLastInboundMessage(ctx context.Context, ch domain.ChannelName, sender string) (time.Time, bool, error)
}

// Config tunes the gate. Zero values fall back to the defaults below.
type Config struct {
	// Window is both the initiation validity window (an inbound message
	// older than this no longer opens the conversation) and the minimum
	// spacing between two initiation attempts to the same recipient.
	Window time.Duration
	// MaxAttempts bounds initiation prompts per (channel, recipient).
	MaxAttempts int
	// LookupTimeout bounds the inbound-message lookup.
	LookupTimeout time.Duration
	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

const (
	defaultWindow        = 24 * time.Hour
	defaultMaxAttempts   = 3
	defaultLookupTimeout = 3 * time.Second
)

// initiationBodies are the fixed, channel-specific opt-in prompts sent
// instead of the real payload when the gate blocks direct delivery.
var initiationBodies = map[domain.ChannelName]string{
	domain.ChannelWhatsApp:  "Hi! We have an update for you. Reply to this message to receive it on WhatsApp.",
	domain.ChannelMessenger: "Hi! We have an update for you. Reply here and we'll send it over Messenger.",
	domain.ChannelInstagram: "Hi! We have an update for you. Reply to this message to receive it here.",
	domain.ChannelX:         "Hi! We have an update for you. Reply to this DM to receive it here.",
}

type stateKey struct {
	channel   domain.ChannelName
	recipient string
}

// initiationState is the per (channel, recipient) record. Each state has
// its own lock so gating one recipient never serialises the others; the
// outer map lock is only held long enough to find or insert the entry.
type initiationState struct {
	mu          sync.Mutex
	initiatedAt time.Time // zero while Unknown/Expired
	attempts    int
	lastAttempt time.Time
}

// Gate tracks initiation state and decides, per (channel, recipient),
// whether a direct send is permitted.
type Gate struct {
	source InboundSource
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	states map[stateKey]*initiationState
}

func New(source InboundSource, cfg Config, logger *zap.Logger) *Gate {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gate{
		source: source,
		cfg:    cfg,
		logger: logger,
		states: make(map[stateKey]*initiationState),
	}
}

func (g *Gate) state(ch domain.ChannelName, recipient string) *initiationState {
	key := stateKey{ch, recipient}
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.states[key]
	if !ok {
		st = &initiationState{}
		g.states[key] = st
	}
	return st
}

// CanSend reports whether a direct send to the recipient is currently
// permitted. The inbound-message signal is re-checked lazily on every call
// rather than via a push subscription: an inbound message inside the
// window moves the state to Initiated and resets the attempt budget.
func (g *Gate) CanSend(ctx context.Context, ch domain.ChannelName, recipient string) bool {
	if !ch.RequiresInitiation() {
		return true
	}

	st := g.state(ch, recipient)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := g.cfg.Now()

	lookupCtx, cancel := context.WithTimeout(ctx, g.cfg.LookupTimeout)
	defer cancel()
	ts, found, err := g.source.GetLastInboundMessage(lookupCtx, ch, recipient)
	if err != nil {
		// Lookup failure: fall back to the cached state rather than
		// blocking delivery on a slow store.
		g.logger.Warn("inbound lookup failed, using cached state",
			zap.String("channel", string(ch)), zap.Error(err))
	} else if found && now.Sub(ts) < g.cfg.Window {
		st.initiatedAt = ts
		st.attempts = 0
	} else {
		st.initiatedAt = time.Time{}
	}

	return !st.initiatedAt.IsZero() && now.Sub(st.initiatedAt) < g.cfg.Window
}

// SendInitiation sends the channel's fixed opt-in prompt to the recipient.
// It refuses without transmitting when the attempt budget is exhausted or
// the previous attempt is still inside the window. Every transmitted
// attempt, successful or not, consumes budget and stamps lastAttempt.
func (g *Gate) SendInitiation(ctx context.Context, ch channel.Channel, recipient string) domain.SendResult {
	name := ch.Name()
	st := g.state(name, recipient)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := g.cfg.Now()
	base := domain.SendResult{
		Channel:       name,
		ActualChannel: name,
		AttemptedAt:   now,
		CompletedAt:   now,
	}

	if st.attempts >= g.cfg.MaxAttempts {
		base.Reason = domain.ReasonInitiationBudget
		base.Error = "initiation attempt budget exhausted"
		return base
	}
	if !st.lastAttempt.IsZero() && now.Sub(st.lastAttempt) < g.cfg.Window {
		base.Reason = domain.ReasonInitiationPending
		base.Error = "previous initiation attempt still within window"
		return base
	}

	st.attempts++
	st.lastAttempt = now

	body, ok := initiationBodies[name]
	if !ok {
		body = "Hi! Reply to this message to receive updates from us."
	}

	res, err := ch.Send(ctx, recipient, domain.Message{Body: body})
	if err != nil {
		g.logger.Warn("initiation send failed",
			zap.String("channel", string(name)),
			zap.Int("attempt", st.attempts),
			zap.Error(err),
		)
	}
	return res
}

// Attempts exposes the consumed initiation budget for a pair; used by the
// metrics snapshot and tests.
func (g *Gate) Attempts(ch domain.ChannelName, recipient string) int {
	st := g.state(ch, recipient)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.attempts
}
