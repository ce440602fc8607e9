package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoAccount        = errors.New("no signed-in account available")
	ErrTransportClosed  = errors.New("transport closed")
	ErrTokenUnavailable = errors.New("conversation token not available")
)

// TokenFetchError reports a non-2xx response from the token proxy. The
// session stays parked; there is no automatic retry.
type TokenFetchError struct {
	Status int
	Body   string
}

func (e *TokenFetchError) Error() string {
	return fmt.Sprintf("token fetch failed: HTTP %d: %s", e.Status, e.Body)
}

// ProtocolError reports a token proxy response that was not JSON, which
// almost always means a wrong URL or an intercepting gateway rather than an
// upstream rejection.
type ProtocolError struct {
	ContentType string
	Body        string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("expected JSON from token endpoint, got %q: %s", e.ContentType, e.Body)
}

// ExchangeError reports a failed silent token exchange for one OAuth card.
// It is only ever logged; the UI stream is unaffected.
type ExchangeError struct {
	ResourceID string
	Err        error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange for resource %q failed: %v", e.ResourceID, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// TruncateBody bounds response bodies destined for logs.
func TruncateBody(body string) string {
	const max = 200
	if len(body) <= max {
		return body
	}
	return body[:max]
}
