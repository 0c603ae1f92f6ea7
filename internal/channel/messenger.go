package channel

import (
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/provider"
)

// NewMessenger builds the Facebook Messenger adapter. Messenger requires a
// messaging type on every send; RESPONSE is correct inside an open
// conversation window, which the gate guarantees before we get here.
func NewMessenger(tx provider.Transmitter, enabled bool) Channel {
	return &adapter{
		name:    domain.ChannelMessenger,
		tx:      tx,
		enabled: enabled,
		buildOptions: func(msg domain.Message) map[string]any {
			opts := map[string]any{
				"messaging_type": "RESPONSE",
			}
			if buttons, ok := msg.Options["buttons"]; ok {
				opts["quick_replies"] = buttons
			}
			if media := attachmentOptions(msg); media != nil {
				opts["attachments"] = media
			}
			return opts
		},
	}
}

// NewInstagram builds the Instagram DM adapter. Instagram rides the same
// graph messaging surface as Messenger but supports neither quick replies
// nor multi-attachment payloads, so only the first attachment is forwarded.
func NewInstagram(tx provider.Transmitter, enabled bool) Channel {
	return &adapter{
		name:    domain.ChannelInstagram,
		tx:      tx,
		enabled: enabled,
		maxBodyLen: 1000,
		buildOptions: func(msg domain.Message) map[string]any {
			opts := map[string]any{
				"messaging_type": "RESPONSE",
			}
			if media := attachmentOptions(msg); media != nil {
				opts["attachment"] = media[0]
			}
			return opts
		},
	}
}
