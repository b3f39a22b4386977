package delta

import (
	"errors"
	"fmt"
)

// ErrMissingResult marks a 2xx response whose body lacks the result envelope
// field. The exchange wraps every successful payload in {"result": ...}; a
// success status without it is treated as an invalid response.
var ErrMissingResult = errors.New("response missing result field")

// ErrSizeNotPositive rejects order placement with a non-positive contract count
// before anything is sent to the exchange.
var ErrSizeNotPositive = errors.New("order size must be positive")

// TransportError wraps connection-level failures (dial, TLS, read timeout).
// The executor retries these up to its attempt cap.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("delta %s %s: transport: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitedError reports an HTTP 429. Retried by the executor.
type RateLimitedError struct {
	Method string
	Path   string
	Body   string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("delta %s %s: rate limited (429): %s", e.Method, e.Path, e.Body)
}

// ServerError reports a 5xx status. 500/502/503/504 are retried; any other 5xx
// is terminal but still classified here.
type ServerError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("delta %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// ClientError reports a non-retryable 4xx, carrying whatever error code the
// exchange put in the body so the failure can be surfaced to the user verbatim.
type ClientError struct {
	Method string
	Path   string
	Status int
	Code   string
	Body   string
}

func (e *ClientError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("delta %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Code)
	}
	return fmt.Sprintf("delta %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// SignatureError marks credentials that cannot produce a valid signature
// (empty key or secret). Fatal, never sent to the exchange.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "delta: " + e.Reason
}

// NotFoundError reports a resolver miss: no product, strike, ticker, or expiry
// matched the request.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return "delta: not found: " + e.What
}

// PartialExecutionError reports a multi-leg operation that left live orders
// behind after a later leg failed. Placed holds every order that reached the
// exchange; the gateway never cancels them on the caller's behalf.
type PartialExecutionError struct {
	Placed []Order
	Err    error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution: %d order(s) placed before failure: %v", len(e.Placed), e.Err)
}

func (e *PartialExecutionError) Unwrap() error { return e.Err }

// retryable reports whether the executor should attempt the request again.
func retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	var se *ServerError
	if errors.As(err, &se) {
		switch se.Status {
		case 500, 502, 503, 504:
			return true
		}
	}
	return false
}
