package channel

import (
	"context"
	"time"

	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/provider"
)

// adapter is the shared Channel implementation. Per-channel behaviour is
// expressed through two hooks: buildOptions maps the message's option bag
// and attachments onto the provider's payload shape, and resolveAddress
// lets a channel redirect delivery (e.g. Slack channel IDs).
type adapter struct {
	name    domain.ChannelName
	tx      provider.Transmitter
	enabled bool

	buildOptions   func(msg domain.Message) map[string]any
	resolveAddress func(recipient string, msg domain.Message) string
	maxBodyLen     int
}

func (a *adapter) Name() domain.ChannelName { return a.name }

func (a *adapter) IsEnabled() bool { return a.enabled && a.tx != nil }

func (a *adapter) Send(ctx context.Context, recipient string, msg domain.Message) (domain.SendResult, error) {
	res := domain.SendResult{
		Channel:       a.name,
		ActualChannel: a.name,
		AttemptedAt:   time.Now().UTC(),
		Attempts:      1,
	}

	body := domain.FormatBody(msg.Body, msg.Priority)
	if a.maxBodyLen > 0 && len(body) > a.maxBodyLen {
		body = body[:a.maxBodyLen]
	}

	address := recipient
	if a.resolveAddress != nil {
		address = a.resolveAddress(recipient, msg)
	}

	var options map[string]any
	if a.buildOptions != nil {
		options = a.buildOptions(msg)
	}

	msgID, err := a.tx.TransmitRaw(ctx, address, body, options)
	res.CompletedAt = time.Now().UTC()

	if err != nil {
		res.Success = false
		res.Reason = domain.ReasonSendFailed
		res.Error = err.Error()
		return res, err
	}

	res.Success = true
	res.Reason = domain.ReasonDelivered
	res.ProviderMsgID = msgID
	return res, nil
}

// attachmentOptions converts attachments into the generic media list shape
// shared by the media-capable providers.
func attachmentOptions(msg domain.Message) []map[string]string {
	if len(msg.Attachments) == 0 {
		return nil
	}
	media := make([]map[string]string, len(msg.Attachments))
	for i, att := range msg.Attachments {
		media[i] = map[string]string{
			"name":       att.Name,
			"media_type": att.MediaType,
			"url":        att.URL,
		}
	}
	return media
}
