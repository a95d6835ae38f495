package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrFetch matches every *Error via errors.Is.
var ErrFetch = errors.New("fetch failure")

// Cause classifies why a fetch failed.
type Cause int

const (
	CauseTransport Cause = iota // connection refused, reset, TLS, truncated body
	CauseTimeout
	CauseDNS
	CauseStatus // server answered with a non-2xx status
	CauseRequest
	CauseCanceled
)

func (c Cause) String() string {
	switch c {
	case CauseTransport:
		return "transport"
	case CauseTimeout:
		return "timeout"
	case CauseDNS:
		return "dns"
	case CauseStatus:
		return "status"
	case CauseRequest:
		return "request"
	case CauseCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("cause(%d)", int(c))
	}
}

// Error is the normalized fetch failure. It always names the requested URL.
type Error struct {
	URL        string
	Cause      Cause
	StatusCode int    // set for CauseStatus
	Body       string // first 512 bytes, set for CauseStatus
	Err        error
}

func (e *Error) Error() string {
	if e.Cause == CauseStatus {
		if e.Body != "" {
			return fmt.Sprintf("error fetching data from %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("error fetching data from %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("error fetching data from %s: %s: %v", e.URL, e.Cause, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrFetch so callers that only care about the
// coarse failure kind can ignore Cause.
func (e *Error) Is(target error) bool { return target == ErrFetch }

// DecodeError reports a 2xx response whose body is not a JSON array of objects.
// It does not match ErrFetch.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding JSON from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// classify maps a transport error from http.Client.Do or a body read to a Cause.
func classify(err error) Cause {
	if errors.Is(err, context.Canceled) {
		return CauseCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CauseDNS
	}
	return CauseTransport
}
