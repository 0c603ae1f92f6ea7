package dispatch_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/channel"
	"github.com/hireloop/notify-engine/internal/cost"
	"github.com/hireloop/notify-engine/internal/dispatch"
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/gate"
	"github.com/hireloop/notify-engine/internal/provider"
	"github.com/hireloop/notify-engine/internal/ratelimiter"
	"github.com/hireloop/notify-engine/internal/store"
)

type fakeTransmitter struct {
	mu     sync.Mutex
	bodies []string
	// errs is consumed one per call; calls past the end succeed.
	errs []error
}

func (f *fakeTransmitter) TransmitRaw(_ context.Context, _ string, body string, _ map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.bodies)
	f.bodies = append(f.bodies, body)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return "msg-fake-1", nil
}

func (f *fakeTransmitter) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

type hookCounts struct {
	mu          sync.Mutex
	sent        int
	failed      int
	fallbacks   int
	initiations int
	rateLimited int
}

func (h *hookCounts) hooks() dispatch.Hooks {
	return dispatch.Hooks{
		OnSent:        func(domain.ChannelName, time.Duration) { h.mu.Lock(); h.sent++; h.mu.Unlock() },
		OnFailed:      func(domain.ChannelName) { h.mu.Lock(); h.failed++; h.mu.Unlock() },
		OnFallback:    func(_, _ domain.ChannelName) { h.mu.Lock(); h.fallbacks++; h.mu.Unlock() },
		OnInitiation:  func(domain.ChannelName) { h.mu.Lock(); h.initiations++; h.mu.Unlock() },
		OnRateLimited: func(domain.ChannelName) { h.mu.Lock(); h.rateLimited++; h.mu.Unlock() },
	}
}

type fixture struct {
	store   *store.MockStore
	txs     map[domain.ChannelName]*fakeTransmitter
	hooks   *hookCounts
	limiter *ratelimiter.ChannelLimiters
	orch    *dispatch.Orchestrator
}

// newFixture wires an orchestrator over fake transmitters. Channels
// without an entry in txs resolve to nil handles (unconfigured);
// channels listed in disabled get a handle that reports IsEnabled false.
func newFixture(t *testing.T, txs map[domain.ChannelName]*fakeTransmitter, disabled map[domain.ChannelName]bool, intervals map[domain.ChannelName]time.Duration) *fixture {
	t.Helper()

	logger := zap.NewNop()
	ms := store.NewMockStore()

	factory := func(_ string, name domain.ChannelName) channel.Channel {
		tx, ok := txs[name]
		if !ok {
			return nil
		}
		return channel.New(name, tx, !disabled[name])
	}
	registry := channel.NewRegistry(factory)

	g := gate.New(ms, gate.Config{}, logger)
	limiter := ratelimiter.New(intervals, 0)
	tracker := cost.NewWindowTracker(cost.NewMemoryCache(), ms, cost.TrackerConfig{}, logger)

	hooks := &hookCounts{}
	orch := dispatch.New(registry, g, limiter, cost.NewClassifier(), tracker, ms, dispatch.Config{
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}, hooks.hooks(), logger)

	return &fixture{store: ms, txs: txs, hooks: hooks, limiter: limiter, orch: orch}
}

func req(body string, priority int, channels ...domain.ChannelName) domain.DispatchRequest {
	return domain.DispatchRequest{
		Body:      body,
		Priority:  priority,
		Recipient: "+15550001111",
		Channels:  channels,
	}
}

func TestDispatchDeliversAndFormats(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelSMS: {},
	}
	f := newFixture(t, txs, nil, nil)

	results, err := f.orch.Dispatch(context.Background(), "default", req("interview tomorrow", 4, domain.ChannelSMS))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res, ok := results[domain.ChannelSMS]
	if !ok {
		t.Fatal("missing result for sms")
	}
	if !res.Success || res.Reason != domain.ReasonDelivered {
		t.Fatalf("want delivered, got %+v", res)
	}
	if res.ActualChannel != domain.ChannelSMS {
		t.Fatalf("ActualChannel = %q", res.ActualChannel)
	}

	calls := txs[domain.ChannelSMS].calls()
	if len(calls) != 1 {
		t.Fatalf("transmit calls = %d, want 1", len(calls))
	}
	if !strings.HasPrefix(calls[0], "[URGENT] ") {
		t.Fatalf("body not prefixed: %q", calls[0])
	}

	entries := f.store.LogEntries()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if entries[0].Kind != domain.LogKindMessage || !entries[0].Success {
		t.Fatalf("unexpected log entry %+v", entries[0])
	}
}

func TestDispatchGatedChannelSendsInitiation(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelWhatsApp: {},
	}
	f := newFixture(t, txs, nil, nil)

	results, err := f.orch.Dispatch(context.Background(), "default", req("your offer letter is ready", 3, domain.ChannelWhatsApp))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res := results[domain.ChannelWhatsApp]
	if res.Success {
		t.Fatal("gated send must not succeed without prior inbound message")
	}
	if res.Reason != domain.ReasonInitiationRequired {
		t.Fatalf("reason = %q, want %q", res.Reason, domain.ReasonInitiationRequired)
	}

	// Exactly one transmission happened and it was the opt-in prompt, not
	// the payload.
	calls := txs[domain.ChannelWhatsApp].calls()
	if len(calls) != 1 {
		t.Fatalf("transmit calls = %d, want 1", len(calls))
	}
	if strings.Contains(calls[0], "offer letter") {
		t.Fatalf("payload leaked through the gate: %q", calls[0])
	}

	entries := f.store.LogEntries()
	if len(entries) != 1 || entries[0].Kind != domain.LogKindInitiation {
		t.Fatalf("want one initiation log entry, got %+v", entries)
	}
	if f.hooks.initiations != 1 {
		t.Fatalf("initiation hook fired %d times", f.hooks.initiations)
	}
}

func TestDispatchGatedChannelOpenConversation(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelWhatsApp: {},
	}
	f := newFixture(t, txs, nil, nil)
	_ = f.store.RecordInboundMessage(context.Background(), domain.ChannelWhatsApp, "+15550001111", time.Now().Add(-time.Hour))

	results, err := f.orch.Dispatch(context.Background(), "default", req("interview confirmed", 1, domain.ChannelWhatsApp))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res := results[domain.ChannelWhatsApp]
	if !res.Success {
		t.Fatalf("want success with open conversation, got %+v", res)
	}

	// Conversation-billed send inside the window is marked free.
	entries := f.store.LogEntries()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if !entries[0].Cost.FreeWindow {
		t.Fatal("send inside the free window not flagged")
	}
}

func TestDispatchFallsBackOnPermanentFailure(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelMessenger: {errs: []error{&provider.Error{StatusCode: 400, Body: "bad recipient"}}},
		domain.ChannelWhatsApp:  {},
	}
	f := newFixture(t, txs, nil, nil)
	// Open the WhatsApp conversation so the fallback is not gated.
	_ = f.store.RecordInboundMessage(context.Background(), domain.ChannelWhatsApp, "+15550001111", time.Now().Add(-time.Minute))

	results, err := f.orch.Dispatch(context.Background(), "default", req("status update", 0, domain.ChannelMessenger))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res, ok := results[domain.ChannelMessenger]
	if !ok {
		t.Fatal("result must be keyed by the requested channel")
	}
	if !res.Success {
		t.Fatalf("want fallback success, got %+v", res)
	}
	if res.Channel != domain.ChannelMessenger || res.ActualChannel != domain.ChannelWhatsApp {
		t.Fatalf("channel attribution wrong: %+v", res)
	}

	// Permanent rejection: exactly one Messenger attempt, no retries.
	if n := len(txs[domain.ChannelMessenger].calls()); n != 1 {
		t.Fatalf("messenger attempts = %d, want 1", n)
	}
	if f.hooks.fallbacks != 1 {
		t.Fatalf("fallback hook fired %d times, want 1", f.hooks.fallbacks)
	}
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelEmail: {errs: []error{
			&provider.Error{StatusCode: 503},
			&provider.Error{StatusCode: 429},
		}},
	}
	f := newFixture(t, txs, nil, nil)

	results, err := f.orch.Dispatch(context.Background(), "default", req("weekly digest", 0, domain.ChannelEmail))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res := results[domain.ChannelEmail]
	if !res.Success {
		t.Fatalf("want success after retries, got %+v", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}

	entries := f.store.LogEntries()
	if len(entries) != 3 {
		t.Fatalf("log entries = %d, want one per attempt", len(entries))
	}
	if entries[0].Success || entries[1].Success || !entries[2].Success {
		t.Fatal("per-attempt log outcomes wrong")
	}
}

func TestDispatchExhaustedChainReportsLastFailure(t *testing.T) {
	// telegram falls back to sms; both permanently reject.
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelTelegram: {errs: []error{&provider.Error{StatusCode: 403}}},
		domain.ChannelSMS:      {errs: []error{&provider.Error{StatusCode: 404}}},
	}
	f := newFixture(t, txs, nil, nil)

	results, err := f.orch.Dispatch(context.Background(), "default", req("reminder", 0, domain.ChannelTelegram))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res := results[domain.ChannelTelegram]
	if res.Success {
		t.Fatal("want failure after chain exhaustion")
	}
	if res.Reason != domain.ReasonSendFailed {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.ActualChannel != domain.ChannelSMS {
		t.Fatalf("last attempted channel = %q, want sms", res.ActualChannel)
	}
	if f.hooks.failed != 1 {
		t.Fatalf("failed hook fired %d times", f.hooks.failed)
	}
}

func TestDispatchSkipsDisabledAndUnconfigured(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelTelegram: {},
		domain.ChannelSMS:      {},
	}
	f := newFixture(t, txs, map[domain.ChannelName]bool{domain.ChannelTelegram: true}, nil)

	results, err := f.orch.Dispatch(context.Background(), "default", req("check in", 0, domain.ChannelTelegram))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res := results[domain.ChannelTelegram]
	if !res.Success || res.ActualChannel != domain.ChannelSMS {
		t.Fatalf("want delivery via sms fallback, got %+v", res)
	}
	if n := len(txs[domain.ChannelTelegram].calls()); n != 0 {
		t.Fatalf("disabled channel transmitted %d times", n)
	}
}

func TestDispatchRateLimitedSkipsLink(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelSMS: {},
	}
	f := newFixture(t, txs, nil, map[domain.ChannelName]time.Duration{
		domain.ChannelSMS: time.Hour,
	})
	// Burn the single token; sms has no fallback, so the dispatch ends
	// rate-limited.
	if !f.limiter.Allow(domain.ChannelSMS) {
		t.Fatal("first Allow must pass")
	}

	results, err := f.orch.Dispatch(context.Background(), "default", req("throttled", 0, domain.ChannelSMS))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res := results[domain.ChannelSMS]
	if res.Success || res.Reason != domain.ReasonRateLimited {
		t.Fatalf("want rate-limited skip, got %+v", res)
	}
	if n := len(txs[domain.ChannelSMS].calls()); n != 0 {
		t.Fatalf("throttled channel transmitted %d times", n)
	}
	if f.hooks.rateLimited != 1 {
		t.Fatalf("rate-limit hook fired %d times", f.hooks.rateLimited)
	}
}

func TestDispatchMultipleTargetsConcurrently(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelSMS:   {},
		domain.ChannelEmail: {},
	}
	f := newFixture(t, txs, nil, nil)

	results, err := f.orch.Dispatch(context.Background(), "default", req("offer accepted", 2, domain.ChannelSMS, domain.ChannelEmail))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, ch := range []domain.ChannelName{domain.ChannelSMS, domain.ChannelEmail} {
		if res := results[ch]; !res.Success {
			t.Fatalf("%s: %+v", ch, res)
		}
		if n := len(txs[ch].calls()); n != 1 {
			t.Fatalf("%s transmitted %d times", ch, n)
		}
	}
	if len(f.store.LogEntries()) != 2 {
		t.Fatalf("log entries = %d, want 2", len(f.store.LogEntries()))
	}
}

func TestDispatchDefaultsToEnabledChannels(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelSMS:   {},
		domain.ChannelEmail: {},
	}
	f := newFixture(t, txs, nil, nil)

	results, err := f.orch.Dispatch(context.Background(), "default", req("broadcast", 0))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want every enabled channel", len(results))
	}
}

func TestDispatchNoChannelsAvailable(t *testing.T) {
	f := newFixture(t, map[domain.ChannelName]*fakeTransmitter{}, nil, nil)

	_, err := f.orch.Dispatch(context.Background(), "default", req("nobody home", 0))
	if err != domain.ErrNoChannels {
		t.Fatalf("err = %v, want ErrNoChannels", err)
	}
}

func TestDispatchRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t, map[domain.ChannelName]*fakeTransmitter{domain.ChannelSMS: {}}, nil, nil)

	_, err := f.orch.Dispatch(context.Background(), "default", domain.DispatchRequest{
		Recipient: "+15550001111",
		Channels:  []domain.ChannelName{domain.ChannelSMS},
	})
	if err == nil {
		t.Fatal("empty body must be rejected")
	}
	_, err = f.orch.Dispatch(context.Background(), "default", domain.DispatchRequest{
		Body:      "hello",
		Recipient: "+15550001111",
		Channels:  []domain.ChannelName{"pager"},
	})
	if err == nil {
		t.Fatal("unknown channel must be rejected")
	}
}

func TestDispatchLogFailureDoesNotAffectOutcome(t *testing.T) {
	txs := map[domain.ChannelName]*fakeTransmitter{
		domain.ChannelSMS: {},
	}
	f := newFixture(t, txs, nil, nil)
	f.store.AppendErr = context.DeadlineExceeded

	results, err := f.orch.Dispatch(context.Background(), "default", req("still goes out", 0, domain.ChannelSMS))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !results[domain.ChannelSMS].Success {
		t.Fatal("audit log failure must not fail the send")
	}
}
