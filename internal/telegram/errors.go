package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RequestError describes a failed Bot API call. StatusCode is the Bot API
// error_code (or the HTTP status when the body carried none) and is zero
// when no response was received; Err then holds the transport failure.
type RequestError struct {
	Method      string
	StatusCode  int
	Description string
	RetryAfter  int
	Err         error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	var b strings.Builder
	b.WriteString("telegram: ")
	b.WriteString(e.Method)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": %d", e.StatusCode)
		if e.Description != "" {
			b.WriteString(" ")
			b.WriteString(e.Description)
		}
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, " (retry after %ds)", e.RetryAfter)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying transport or decoding error.
func (e *RequestError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same call later may succeed.
func (e *RequestError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// stripURL drops the request URL from transport errors. The URL embeds the
// bot token.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// isBreakerSuccess classifies call outcomes for the circuit breaker. Client
// errors and rate limiting are the caller's problem; only transport
// failures and server errors count against the API.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode >= 400 && reqErr.StatusCode < 500 {
		return true
	}
	return false
}
