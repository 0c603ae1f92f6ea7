package channel

import (
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/provider"
)

// NewTelegram builds the Telegram bot adapter. A thread_id option routes
// the message into a forum topic; low-priority messages are delivered
// silently so they do not buzz the recipient's phone.
func NewTelegram(tx provider.Transmitter, enabled bool) Channel {
	return &adapter{
		name:       domain.ChannelTelegram,
		tx:         tx,
		enabled:    enabled,
		maxBodyLen: 4096,
		buildOptions: func(msg domain.Message) map[string]any {
			opts := map[string]any{
				"parse_mode":           "HTML",
				"disable_notification": msg.Priority < domain.PriorityImportant,
			}
			if threadID := msg.Option("thread_id"); threadID != "" {
				opts["message_thread_id"] = threadID
			}
			if media := attachmentOptions(msg); media != nil {
				opts["media"] = media
			}
			return opts
		},
	}
}
