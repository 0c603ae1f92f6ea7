package domain

// ChannelName identifies one delivery channel adapter.
type ChannelName string

const (
	ChannelWhatsApp  ChannelName = "whatsapp"
	ChannelEmail     ChannelName = "email"
	ChannelTelegram  ChannelName = "telegram"
	ChannelSMS       ChannelName = "sms"
	ChannelMessenger ChannelName = "messenger"
	ChannelInstagram ChannelName = "instagram"
	ChannelSlack     ChannelName = "slack"
	ChannelX         ChannelName = "x"
)

// AllChannels returns every registered channel name in a stable order.
func AllChannels() []ChannelName {
	return []ChannelName{
		ChannelWhatsApp, ChannelEmail, ChannelTelegram, ChannelSMS,
		ChannelMessenger, ChannelInstagram, ChannelSlack, ChannelX,
	}
}

func (c ChannelName) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelEmail, ChannelTelegram, ChannelSMS,
		ChannelMessenger, ChannelInstagram, ChannelSlack, ChannelX:
		return true
	}
	return false
}

// fallbacks is the static fallback table. A missing entry means the channel
// is terminal. The table must stay acyclic; FallbackChain guards against
// accidental cycles anyway.
var fallbacks = map[ChannelName]ChannelName{
	ChannelMessenger: ChannelWhatsApp,
	ChannelInstagram: ChannelWhatsApp,
	ChannelWhatsApp:  ChannelSMS,
	ChannelX:         ChannelEmail,
	ChannelSlack:     ChannelEmail,
	ChannelTelegram:  ChannelSMS,
}

// Fallback returns the declared substitute channel, if any.
func (c ChannelName) Fallback() (ChannelName, bool) {
	fb, ok := fallbacks[c]
	return fb, ok
}

// maxChainDepth bounds fallback resolution. The declared table never goes
// deeper than three links (messenger -> whatsapp -> sms).
const maxChainDepth = 4

// FallbackChain resolves the ordered list of channels to try for a target:
// the target itself followed by its transitive fallbacks. Each name appears
// at most once and the chain never exceeds maxChainDepth.
func FallbackChain(target ChannelName) []ChannelName {
	chain := []ChannelName{target}
	seen := map[ChannelName]bool{target: true}

	cur := target
	for len(chain) < maxChainDepth {
		next, ok := cur.Fallback()
		if !ok || seen[next] {
			break
		}
		chain = append(chain, next)
		seen[next] = true
		cur = next
	}
	return chain
}

// gated marks channels that forbid unsolicited outbound messages: the
// recipient must have initiated contact within the platform's window.
var gated = map[ChannelName]bool{
	ChannelWhatsApp:  true,
	ChannelMessenger: true,
	ChannelInstagram: true,
	ChannelX:         true,
}

// RequiresInitiation reports whether the channel is conversation-gated.
func (c ChannelName) RequiresInitiation() bool {
	return gated[c]
}

// ConversationBilled reports whether the provider bills per conversation
// window rather than per message. Cost classification only matters for
// these channels; SMS and email are billed per message regardless.
func (c ChannelName) ConversationBilled() bool {
	switch c {
	case ChannelWhatsApp, ChannelMessenger, ChannelInstagram:
		return true
	}
	return false
}
