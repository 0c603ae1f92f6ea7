package domain

import (
	"strings"
	"time"
)

// Priority bounds. Priority drives the urgency prefix applied by every
// channel adapter and the queue tier used by the async path.
const (
	MinPriority = 0
	MaxPriority = 5

	// PriorityUrgent and above get the URGENT prefix; PriorityImportant
	// and above (but below urgent) get the IMPORTANT prefix.
	PriorityImportant = 2
	PriorityUrgent    = 4
)

const (
	urgentPrefix    = "[URGENT] "
	importantPrefix = "[IMPORTANT] "
)

// FormatBody applies the shared priority-to-prefix transform. It is
// idempotent: a body that already carries a prefix is returned unchanged,
// so re-formatting on a fallback attempt never double-prefixes.
func FormatBody(body string, priority int) string {
	if strings.HasPrefix(body, urgentPrefix) || strings.HasPrefix(body, importantPrefix) {
		return body
	}
	switch {
	case priority >= PriorityUrgent:
		return urgentPrefix + body
	case priority >= PriorityImportant:
		return importantPrefix + body
	default:
		return body
	}
}

// Attachment is a reference to media carried alongside the body.
// Adapters that cannot deliver media ignore attachments.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	URL       string `json:"url"`
}

// Message is the immutable payload handed to channel adapters.
// Options carries channel-specific addressing such as thread IDs or
// reply buttons; each adapter picks out the keys it understands.
type Message struct {
	Body        string         `json:"body"`
	Priority    int            `json:"priority"`
	Options     map[string]any `json:"options,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// Option returns a string-typed option value, or "" if absent.
func (m Message) Option(key string) string {
	if m.Options == nil {
		return ""
	}
	s, _ := m.Options[key].(string)
	return s
}

// DispatchRequest is the caller-facing input for one dispatch call.
// An empty Channels slice means "all enabled channels".
type DispatchRequest struct {
	Body        string         `json:"body"`
	Priority    int            `json:"priority"`
	Recipient   string         `json:"recipient"`
	Channels    []ChannelName  `json:"channels,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	FlowType    string         `json:"flow_type,omitempty"`
}

func (r *DispatchRequest) Validate() error {
	if strings.TrimSpace(r.Body) == "" {
		return ErrEmptyMessage
	}
	if len(r.Body) > 4096 {
		return ErrInvalidContent
	}
	if r.Priority < MinPriority || r.Priority > MaxPriority {
		return ErrInvalidPriority
	}
	if r.Recipient == "" {
		return ErrInvalidRecipient
	}
	for _, ch := range r.Channels {
		if !ch.IsValid() {
			return ErrUnknownChannel
		}
	}
	return nil
}

// Message builds the immutable payload carried through the fallback chain.
func (r *DispatchRequest) Message() Message {
	return Message{
		Body:        r.Body,
		Priority:    r.Priority,
		Options:     r.Options,
		Attachments: r.Attachments,
	}
}

// JobStatus tracks the lifecycle of an async dispatch job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// DispatchJob is a persisted asynchronous dispatch request. Jobs whose
// every target channel terminally failed are retried with backoff by the
// redeliver worker until MaxRetries is reached.
type DispatchJob struct {
	ID             string                     `json:"id"`
	Request        DispatchRequest            `json:"request"`
	Status         JobStatus                  `json:"status"`
	IdempotencyKey *string                    `json:"idempotency_key,omitempty"`
	RetryCount     int                        `json:"retry_count"`
	MaxRetries     int                        `json:"max_retries"`
	NextRetryAt    *time.Time                 `json:"next_retry_at,omitempty"`
	Results        map[ChannelName]SendResult `json:"results,omitempty"`
	ErrorMessage   *string                    `json:"error_message,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}
