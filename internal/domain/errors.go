package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict: idempotency key already exists")
	ErrUnknownChannel   = errors.New("unknown channel name")
	ErrEmptyMessage     = errors.New("message body must not be empty")
	ErrInvalidContent   = errors.New("message body must be at most 4096 characters")
	ErrInvalidPriority  = errors.New("priority must be between 0 and 5")
	ErrInvalidRecipient = errors.New("recipient must not be empty")
	ErrNoChannels       = errors.New("no enabled channels to dispatch to")
	ErrQueueFull        = errors.New("queue is at capacity, try again later")
)
