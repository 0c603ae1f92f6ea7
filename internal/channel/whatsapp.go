package channel

import (
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/provider"
)

// NewWhatsApp builds the WhatsApp Business adapter. Reply buttons from the
// option bag pass through as interactive buttons; attachments become media
// objects on the provider payload.
func NewWhatsApp(tx provider.Transmitter, enabled bool) Channel {
	return &adapter{
		name:    domain.ChannelWhatsApp,
		tx:      tx,
		enabled: enabled,
		buildOptions: func(msg domain.Message) map[string]any {
			opts := map[string]any{
				"messaging_product": "whatsapp",
				"preview_url":       false,
			}
			if buttons, ok := msg.Options["buttons"]; ok {
				opts["buttons"] = buttons
			}
			if media := attachmentOptions(msg); media != nil {
				opts["media"] = media
			}
			return opts
		},
	}
}
