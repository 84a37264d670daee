package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError is a non-2xx response from the marketplace.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API error (%d): %s", e.Status, e.Body)
}

// RemoteUnavailableError wraps the last transient failure after the retry
// budget is exhausted. Callers skip the affected unit of work and continue.
type RemoteUnavailableError struct {
	Cause error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote unavailable: %v", e.Cause)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Cause }

// RemoteRejectedError is a 4xx validation failure. Never retried; carries the
// remote diagnostic body verbatim.
type RemoteRejectedError struct {
	Status     int
	Diagnostic string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("remote rejected (%d): %s", e.Status, e.Diagnostic)
}

// AuthError is a credential failure; it terminates the whole run instead of
// a single unit of work.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("marketplace authentication failed (%d)", e.Status)
}

func IsRemoteUnavailable(err error) bool {
	var ue *RemoteUnavailableError
	return errors.As(err, &ue)
}

func IsRemoteRejected(err error) bool {
	var re *RemoteRejectedError
	return errors.As(err, &re)
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Disposition classifies a request outcome so the retry loop is a decision
// over data rather than control flow.
type Disposition int

const (
	DispositionOK Disposition = iota
	DispositionRetry
	DispositionRetrySlow
	DispositionFatal
)

func classify(err error) Disposition {
	if err == nil {
		return DispositionOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return DispositionFatal
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			// Unexpected throttling: retry with the extended backoff.
			return DispositionRetrySlow
		case apiErr.Status >= 500:
			return DispositionRetry
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return DispositionFatal
		default:
			return DispositionFatal
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return DispositionRetry
	}
	// Connection resets and other transport errors surface as *url.Error.
	return DispositionRetry
}
