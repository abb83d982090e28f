package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	// KindNotConfigured: the requested provider has no registered client.
	KindNotConfigured ErrorKind = "not_configured"
	// KindHTTPStatus: the provider returned a non-2xx status.
	KindHTTPStatus ErrorKind = "http_status"
	// KindMalformed: the provider response could not be parsed.
	KindMalformed ErrorKind = "malformed"
	// KindRequestFailed: the request never produced a response.
	KindRequestFailed ErrorKind = "request_failed"
	// KindBreakerOpen: the provider's circuit breaker rejected the call.
	KindBreakerOpen ErrorKind = "breaker_open"
	// KindAllProvidersFailed: every registered provider failed.
	KindAllProvidersFailed ErrorKind = "all_providers_failed"
)

// maxDetailLen bounds provider response text carried in errors so a
// large error body never floods logs.
const maxDetailLen = 512

// Error is the error type for all generation failures.
type Error struct {
	Kind          ErrorKind
	Provider      string
	CorrelationID string
	StatusCode    int
	Details       string
	Attempted     map[string]error // per-provider last error, all-failed only
	cause         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("llm %s: provider=%s", e.Kind, e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds an Error, truncating details to maxDetailLen.
func NewError(kind ErrorKind, provider, correlationID, details string, cause error) *Error {
	return &Error{
		Kind:          kind,
		Provider:      provider,
		CorrelationID: correlationID,
		Details:       Truncate(details),
		cause:         cause,
	}
}

// Truncate bounds response text before it is logged or embedded in an
// error. The cut lands on a rune boundary so multi-byte text stays valid.
func Truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	cut := maxDetailLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// KindOf returns the error kind, or "" for non-llm errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
