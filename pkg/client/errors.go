package client

import (
	"errors"
	"fmt"
	"time"
)

// Leg names one network exchange of a call.
type Leg string

const (
	LegSession           Leg = "session"
	LegQuery             Leg = "query"
	LegUploadNegotiation Leg = "upload negotiation"
	LegStorageTransfer   Leg = "storage transfer"
)

var (
	// ErrTransport is matched by every *LegError and *StatusError.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("timeout")

	ErrFileUploadRequiresAuth  = errors.New("file upload requires authentication cookies")
	ErrUploadNegotiationFailed = errors.New("upload negotiation failed")
	ErrStorageTransferFailed   = errors.New("storage transfer failed")
	ErrMissingStorageReference = errors.New("storage response has no secure_url")
	ErrMalformedPayload        = errors.New("malformed event payload")
	ErrUnexpectedEndOfStream   = errors.New("stream ended without any event")
)

// LegError is a network failure on one leg.
type LegError struct {
	Leg Leg
	Err error
}

func (e *LegError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Leg, e.Err)
}

func (e *LegError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e *LegError) Is(target error) bool { return target == ErrTransport }

// StatusError is a non-2xx response on one leg.
type StatusError struct {
	Leg        Leg
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s request failed with status %d", e.Leg, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.Leg, e.StatusCode, e.Message)
}

// Is reports whether target is ErrTransport.
func (e *StatusError) Is(target error) bool { return target == ErrTransport }

// TimeoutError reports a leg that did not complete within its limit.
type TimeoutError struct {
	Leg      Leg
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s request timed out after %s", e.Leg, e.Duration)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// uploadFailure tags a leg error with the upload step that produced it.
func uploadFailure(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}
