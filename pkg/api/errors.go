package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AuthenticationError reports that the server rejected the request's
// credentials (HTTP 401 or 403). For streaming calls it is raised before a
// decoder is constructed.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// RateLimitError reports that the server throttled the request (HTTP 429).
type RateLimitError struct {
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, e.Message)
}

// RequestError reports any other non-success HTTP status. Body carries the
// raw (bounded) response body for callers that need more than the extracted
// message.
type RequestError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// TransportError reports a network-level failure while connecting or while
// reading a stream. Op names the failing operation; Err is the underlying
// cause.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying cause is a deadline or network
// timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}
