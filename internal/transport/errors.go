package transport

import "time"

// ErrorKind classifies a ProviderError for the supervisor's error-taxonomy
// mapping (see internal/model.ErrorKind).
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindRateLimited ErrorKind = "rate_limited"
	KindServer      ErrorKind = "server"
	KindClient      ErrorKind = "client"
	KindCancelled   ErrorKind = "cancelled"
)

// ProviderError is the sanitized error shape every internal/provider call
// returns — the message is scrubbed of request/response bodies before it
// ever reaches a log or receipt.
type ProviderError struct {
	Kind             ErrorKind
	StatusCode       int
	MessageSanitized string
	retryAfter       time.Duration
	hasRetryAfter    bool
}

func (e *ProviderError) Error() string {
	return e.MessageSanitized
}

// Retryable reports whether the failure is worth retrying: network hiccups,
// rate limits, and 5xx are; 4xx client errors are not (internal/provider
// classifies 408 and 425 as network errors and 429 as rate limited).
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

// RetryAfter returns the server-specified wait, when one was parsed from a
// Retry-After header.
func (e *ProviderError) RetryAfter() (time.Duration, bool) {
	return e.retryAfter, e.hasRetryAfter
}

// NewProviderError builds a ProviderError, attaching a Retry-After duration
// when the caller has one (e.g. parsed from an HTTP response header).
func NewProviderError(kind ErrorKind, status int, message string, retryAfter time.Duration) *ProviderError {
	return &ProviderError{
		Kind:             kind,
		StatusCode:       status,
		MessageSanitized: message,
		retryAfter:       retryAfter,
		hasRetryAfter:    retryAfter > 0,
	}
}
