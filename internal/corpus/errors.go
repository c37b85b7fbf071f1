package corpus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind buckets failures for retry gating and final reporting.
type ErrorKind string

// Error kinds surfaced in FetchRecords and reports.
const (
	KindNetwork   ErrorKind = "network"
	KindRateLimit ErrorKind = "rate_limit"
	KindParse     ErrorKind = "parse"
	KindDisk      ErrorKind = "disk"
	KindDiscovery ErrorKind = "discovery"
	KindValidate  ErrorKind = "validation"
)

// Error carries a kind alongside the underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err, defaulting to KindNetwork for plain
// transport errors and empty otherwise.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return ""
}

// StatusError reports an unexpected upstream HTTP status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// ClassifyHTTPStatus maps an upstream status code onto the taxonomy. 429 and
// 503 are throttling signals; other non-2xx codes count as network failures.
func ClassifyHTTPStatus(code int, url string) error {
	if code >= 200 && code < 300 {
		return nil
	}
	se := &StatusError{Code: code, URL: url}
	if code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable {
		return NewError(KindRateLimit, se)
	}
	return NewError(KindNetwork, se)
}

// ClassifyFetchError normalizes an arbitrary fetch failure into a kinded
// error so retry gating and ledger bookkeeping stay uniform.
func ClassifyFetchError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindNetwork, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(KindNetwork, err)
	}
	return NewError(KindNetwork, err)
}

// Retryable reports whether the kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimit:
		return true
	default:
		return false
	}
}
