package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchError reports a failed fetch of URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string { return "timeout: " + e.Err.Error() }

func (e ErrTimeout) Unwrap() error { return e.Err }

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string { return "connection: " + e.Err.Error() }

func (e ErrConnection) Unwrap() error { return e.Err }

// ErrForbidden indicates an HTTP 403 response.
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string { return "forbidden: " + e.Err.Error() }

func (e ErrForbidden) Unwrap() error { return e.Err }

// ErrNotFound indicates an HTTP 404 response.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string { return "not_found: " + e.Err.Error() }

func (e ErrNotFound) Unwrap() error { return e.Err }

// ErrRateLimited indicates an HTTP 429 response.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string { return "rate_limited: " + e.Err.Error() }

func (e ErrRateLimited) Unwrap() error { return e.Err }

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode >= http.StatusBadRequest {
		return "http_status"
	}
	return "other"
}

// classifyError maps a transport error or status code onto the typed errors
// above. Errors it does not recognise are returned unchanged.
func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		return wrapped
	}

	return err
}
