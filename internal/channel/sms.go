package channel

import (
	"strings"

	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/provider"
)

// NewSMS builds the SMS gateway adapter. Bodies are capped at ten
// concatenated GSM segments; attachments and buttons have no SMS
// representation and are dropped.
func NewSMS(tx provider.Transmitter, enabled bool) Channel {
	return &adapter{
		name:       domain.ChannelSMS,
		tx:         tx,
		enabled:    enabled,
		maxBodyLen: 1530,
		buildOptions: func(msg domain.Message) map[string]any {
			if sender := msg.Option("sender_id"); sender != "" {
				return map[string]any{"sender_id": sender}
			}
			return nil
		},
	}
}

// NewEmail builds the email adapter. The subject comes from the option bag
// or, failing that, the first line of the body; attachments are forwarded
// as-is.
func NewEmail(tx provider.Transmitter, enabled bool) Channel {
	return &adapter{
		name:    domain.ChannelEmail,
		tx:      tx,
		enabled: enabled,
		buildOptions: func(msg domain.Message) map[string]any {
			subject := msg.Option("subject")
			if subject == "" {
				subject = firstLine(domain.FormatBody(msg.Body, msg.Priority))
			}
			opts := map[string]any{"subject": subject}
			if replyTo := msg.Option("reply_to"); replyTo != "" {
				opts["reply_to"] = replyTo
			}
			if media := attachmentOptions(msg); media != nil {
				opts["attachments"] = media
			}
			return opts
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxSubject = 120
	if len(s) > maxSubject {
		s = s[:maxSubject]
	}
	return strings.TrimSpace(s)
}
