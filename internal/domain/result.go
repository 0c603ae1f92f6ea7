package domain

import "time"

// Reason is a machine-readable outcome tag on a SendResult. Callers key
// behaviour off Reason rather than parsing Error strings.
type Reason string

const (
	ReasonDelivered          Reason = "delivered"
	ReasonInitiationRequired Reason = "initiation_required"
	ReasonInitiationBudget   Reason = "initiation_budget_exhausted"
	ReasonInitiationPending  Reason = "initiation_window_active"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonChannelUnavailable Reason = "channel_unavailable"
	ReasonSendFailed         Reason = "send_failed"
)

// SendResult is the outcome for one requested channel. Channel is the name
// the caller asked for; ActualChannel is the link in the fallback chain that
// finally carried (or last attempted) the message.
type SendResult struct {
	Channel       ChannelName `json:"channel"`
	ActualChannel ChannelName `json:"actual_channel,omitempty"`
	Success       bool        `json:"success"`
	Reason        Reason      `json:"reason"`
	ProviderMsgID string      `json:"provider_message_id,omitempty"`
	Error         string      `json:"error,omitempty"`
	Attempts      int         `json:"attempts"`
	AttemptedAt   time.Time   `json:"attempted_at"`
	CompletedAt   time.Time   `json:"completed_at"`
}

// LogKind distinguishes real payload attempts from initiation attempts
// in the delivery log.
type LogKind string

const (
	LogKindMessage    LogKind = "message"
	LogKindInitiation LogKind = "initiation"
)

// DeliveryLogEntry is the append-only audit record for one send attempt.
// The engine only ever writes these; nothing in the core reads them back.
type DeliveryLogEntry struct {
	ID            string             `json:"id"`
	DispatchID    string             `json:"dispatch_id"`
	Channel       ChannelName        `json:"channel"`
	Recipient     string             `json:"recipient"`
	BodyHash      string             `json:"body_hash"`
	Kind          LogKind            `json:"kind"`
	Success       bool               `json:"success"`
	ProviderMsgID string             `json:"provider_message_id,omitempty"`
	Error         string             `json:"error,omitempty"`
	Cost          CostClassification `json:"cost"`
	AttemptedAt   time.Time          `json:"attempted_at"`
}
