package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind classifies a fetch failure.
type Kind string

// Failure kinds.
const (
	KindInvalidURL  Kind = "invalid_url"
	KindDNS         Kind = "dns"
	KindConnection  Kind = "connection"
	KindTimeout     Kind = "timeout"
	KindCanceled    Kind = "canceled"
	KindRateLimited Kind = "rate_limited"
	KindStatus      Kind = "status"
	KindTooLarge    Kind = "too_large"
	KindParse       Kind = "parse"
)

// Error is a classified fetch failure with a user facing message.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Timeout    time.Duration
	Limit      int64
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidURL:
		return fmt.Sprintf("invalid URL %q: %v", e.URL, e.Err)
	case KindDNS:
		return fmt.Sprintf("DNS lookup failed for %s: %v", e.URL, e.Err)
	case KindTimeout:
		return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
	case KindCanceled:
		return fmt.Sprintf("request to %s was cancelled", e.URL)
	case KindRateLimited:
		return fmt.Sprintf("too many requests to %s: no slot free within %s, try again shortly", e.URL, e.Timeout)
	case KindStatus:
		return fmt.Sprintf("HTTP %d %s from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
	case KindTooLarge:
		return fmt.Sprintf("response from %s exceeds %d bytes", e.URL, e.Limit)
	case KindParse:
		return fmt.Sprintf("failed to parse HTML from %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a fetch error, or "" for other errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// classify maps a transport error to a Kind.
func classify(err error) Kind {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &dnsErr):
		return KindDNS
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	default:
		return KindConnection
	}
}
