package channel

import (
	"context"

	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/provider"
)

// Channel is a capability-bound unit that can format and transmit one
// message to one recipient on one external platform.
//
// Send always returns a populated SendResult, even when transmission blew
// up — the error return carries the raw transmit failure so the dispatcher
// can classify it as transient or permanent. A nil error means delivered.
type Channel interface {
	Name() domain.ChannelName

	// IsEnabled is a pure capability check from business-context config.
	// It must not perform network I/O.
	IsEnabled() bool

	Send(ctx context.Context, recipient string, msg domain.Message) (domain.SendResult, error)
}

// New constructs the adapter for a channel name. Every valid name maps to
// exactly one adapter implementation; unknown names yield nil.
func New(name domain.ChannelName, tx provider.Transmitter, enabled bool) Channel {
	switch name {
	case domain.ChannelWhatsApp:
		return NewWhatsApp(tx, enabled)
	case domain.ChannelEmail:
		return NewEmail(tx, enabled)
	case domain.ChannelTelegram:
		return NewTelegram(tx, enabled)
	case domain.ChannelSMS:
		return NewSMS(tx, enabled)
	case domain.ChannelMessenger:
		return NewMessenger(tx, enabled)
	case domain.ChannelInstagram:
		return NewInstagram(tx, enabled)
	case domain.ChannelSlack:
		return NewSlack(tx, enabled)
	case domain.ChannelX:
		return NewX(tx, enabled)
	}
	return nil
}
