package tmio

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoUserAgent = errors.New("no user agent set: Trackmania.io requires one identifying the caller")
	ErrNotFound    = errors.New("trackmania.io: not found")
	ErrRateLimited = errors.New("trackmania.io: rate limited")
)

// StatusError is a non-2xx response. errors.Is matches ErrNotFound for 404
// and ErrRateLimited for 429.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trackmania.io: status %d: %s", e.Status, truncate(e.Body))
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// APIError is a 200 response whose body carries an "error" field, which is
// how Trackmania.io reports unknown ids on several endpoints.
type APIError struct {
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return "trackmania.io: " + e.Message
}

// TransportError wraps failures below HTTP: dialing, TLS, timeouts, reading
// the body.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "trackmania.io: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
