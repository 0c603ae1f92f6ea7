package channel

import (
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/provider"
)

// NewSlack builds the Slack adapter. A channel_id option redirects the
// message from the recipient's DM to a named channel; thread_ts threads
// the message under an existing one.
func NewSlack(tx provider.Transmitter, enabled bool) Channel {
	return &adapter{
		name:    domain.ChannelSlack,
		tx:      tx,
		enabled: enabled,
		resolveAddress: func(recipient string, msg domain.Message) string {
			if channelID := msg.Option("channel_id"); channelID != "" {
				return channelID
			}
			return recipient
		},
		buildOptions: func(msg domain.Message) map[string]any {
			opts := map[string]any{
				"unfurl_links": false,
			}
			if threadTS := msg.Option("thread_ts"); threadTS != "" {
				opts["thread_ts"] = threadTS
			}
			if media := attachmentOptions(msg); media != nil {
				opts["files"] = media
			}
			return opts
		},
	}
}

// NewX builds the X (Twitter) direct-message adapter. DMs carry plain text
// only; the 10k character platform cap is enforced here.
func NewX(tx provider.Transmitter, enabled bool) Channel {
	return &adapter{
		name:       domain.ChannelX,
		tx:         tx,
		enabled:    enabled,
		maxBodyLen: 10000,
	}
}
