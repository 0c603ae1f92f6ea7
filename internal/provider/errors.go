package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error is a provider-reported failure carrying the HTTP status code.
// The retry policy keys off Transient: 5xx and throttling responses may
// succeed on a later attempt, 4xx rejections never will.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("provider status %d", e.StatusCode)
}

// Transient reports whether a retry might help.
func (e *Error) Transient() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 429 || e.StatusCode == 408:
		return true
	}
	return false
}

// IsTransient classifies any transmit error. Network-level failures and
// timeouts are always retryable; provider rejections depend on the status
// code; anything else is treated as permanent so a broken payload is not
// retransmitted three times per chain link.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr.Transient()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}

	return false
}
