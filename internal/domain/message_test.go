package domain_test

import (
	"strings"
	"testing"

	"github.com/hireloop/notify-engine/internal/domain"
)

func TestFormatBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		priority int
		want     string
	}{
		{"priority 0 unchanged", "hello", 0, "hello"},
		{"priority 1 unchanged", "hello", 1, "hello"},
		{"priority 2 important", "hello", 2, "[IMPORTANT] hello"},
		{"priority 3 important", "hello", 3, "[IMPORTANT] hello"},
		{"priority 4 urgent", "hello", 4, "[URGENT] hello"},
		{"priority 5 urgent", "hello", 5, "[URGENT] hello"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.FormatBody(tc.body, tc.priority); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFormatBody_Idempotent(t *testing.T) {
	once := domain.FormatBody("system down", 5)
	twice := domain.FormatBody(once, 5)
	if once != twice {
		t.Fatalf("double formatting changed the body: %q vs %q", once, twice)
	}
	if strings.Count(twice, "[URGENT]") != 1 {
		t.Fatalf("expected exactly one URGENT marker, got %q", twice)
	}

	// An important body must not gain an urgent prefix on a re-format either.
	important := domain.FormatBody("review this", 2)
	if got := domain.FormatBody(important, 5); got != important {
		t.Fatalf("re-format with higher priority altered body: %q", got)
	}
}

func TestDispatchRequest_Validate(t *testing.T) {
	valid := domain.DispatchRequest{
		Body:      "Your interview is confirmed",
		Priority:  1,
		Recipient: "+905551234567",
		Channels:  []domain.ChannelName{domain.ChannelSMS},
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		r := valid
		r.Body = "   "
		if err := r.Validate(); err != domain.ErrEmptyMessage {
			t.Fatalf("expected ErrEmptyMessage, got %v", err)
		}
	})

	t.Run("body too long", func(t *testing.T) {
		r := valid
		r.Body = strings.Repeat("x", 4097)
		if err := r.Validate(); err != domain.ErrInvalidContent {
			t.Fatalf("expected ErrInvalidContent, got %v", err)
		}
	})

	t.Run("priority out of range", func(t *testing.T) {
		for _, p := range []int{-1, 6} {
			r := valid
			r.Priority = p
			if err := r.Validate(); err != domain.ErrInvalidPriority {
				t.Fatalf("priority %d: expected ErrInvalidPriority, got %v", p, err)
			}
		}
	})

	t.Run("empty recipient", func(t *testing.T) {
		r := valid
		r.Recipient = ""
		if err := r.Validate(); err != domain.ErrInvalidRecipient {
			t.Fatalf("expected ErrInvalidRecipient, got %v", err)
		}
	})

	t.Run("unknown channel", func(t *testing.T) {
		r := valid
		r.Channels = []domain.ChannelName{"fax"}
		if err := r.Validate(); err != domain.ErrUnknownChannel {
			t.Fatalf("expected ErrUnknownChannel, got %v", err)
		}
	})

	t.Run("no explicit channels is valid", func(t *testing.T) {
		r := valid
		r.Channels = nil
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestFallbackChain(t *testing.T) {
	tests := []struct {
		target domain.ChannelName
		want   []domain.ChannelName
	}{
		{domain.ChannelMessenger, []domain.ChannelName{domain.ChannelMessenger, domain.ChannelWhatsApp, domain.ChannelSMS}},
		{domain.ChannelInstagram, []domain.ChannelName{domain.ChannelInstagram, domain.ChannelWhatsApp, domain.ChannelSMS}},
		{domain.ChannelWhatsApp, []domain.ChannelName{domain.ChannelWhatsApp, domain.ChannelSMS}},
		{domain.ChannelSlack, []domain.ChannelName{domain.ChannelSlack, domain.ChannelEmail}},
		{domain.ChannelX, []domain.ChannelName{domain.ChannelX, domain.ChannelEmail}},
		{domain.ChannelTelegram, []domain.ChannelName{domain.ChannelTelegram, domain.ChannelSMS}},
		{domain.ChannelSMS, []domain.ChannelName{domain.ChannelSMS}},
		{domain.ChannelEmail, []domain.ChannelName{domain.ChannelEmail}},
	}

	for _, tc := range tests {
		t.Run(string(tc.target), func(t *testing.T) {
			got := domain.FallbackChain(tc.target)
			if len(got) != len(tc.want) {
				t.Fatalf("expected chain %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected chain %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestFallbackChain_NoRevisits(t *testing.T) {
	for _, ch := range domain.AllChannels() {
		seen := map[domain.ChannelName]bool{}
		for _, link := range domain.FallbackChain(ch) {
			if seen[link] {
				t.Fatalf("chain for %s revisits %s", ch, link)
			}
			seen[link] = true
		}
	}
}
