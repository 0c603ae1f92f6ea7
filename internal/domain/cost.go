package domain

// CostCategory buckets a message for provider billing purposes.
type CostCategory string

const (
	CategoryService   CostCategory = "service"
	CategoryUtility   CostCategory = "utility"
	CategoryMarketing CostCategory = "marketing"
)

// PricingModel describes how the provider charges for delivery.
type PricingModel string

const (
	PricingPerConversation PricingModel = "per_conversation"
	PricingPerMessage      PricingModel = "per_message"
)

// MessageType is the content shape as far as billing is concerned.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeMedia MessageType = "media"
)

// CostClassification is derived per send and written into the delivery log.
// FreeWindow is only meaningful for conversation-billed channels: true means
// the recipient messaged us within the window, so this send rides an open
// conversation instead of opening a billable one.
type CostClassification struct {
	PricingModel PricingModel `json:"pricing_model"`
	MessageType  MessageType  `json:"message_type"`
	Category     CostCategory `json:"category"`
	FreeWindow   bool         `json:"free_window"`
}
