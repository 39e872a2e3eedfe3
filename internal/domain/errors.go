package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type ErrorKind string

const (
	KindInvalidCredentials      ErrorKind = "INVALID_CREDENTIALS"
	KindActorNotFound           ErrorKind = "ACTOR_NOT_FOUND"
	KindRunFailed               ErrorKind = "RUN_FAILED"
	KindTimeout                 ErrorKind = "TIMEOUT"
	KindRateLimited             ErrorKind = "RATE_LIMITED"
	KindUsageQuotaExceeded      ErrorKind = "USAGE_QUOTA_EXCEEDED"
	KindNoResults               ErrorKind = "NO_RESULTS"
	KindNetworkError            ErrorKind = "NETWORK_ERROR"
	KindInvalidUpstreamResponse ErrorKind = "INVALID_UPSTREAM_RESPONSE"
	KindUnknown                 ErrorKind = "UNKNOWN"
)

var (
	ErrBrandRequired      = errors.New("brand name is required")
	ErrBrandTooLong       = errors.New("brand name is too long")
	ErrInvalidMaxAds      = errors.New("maxAds must be between 1 and 100")
	ErrInvalidCountryCode = errors.New("countryCode must be a 2-letter code")
	ErrInvalidTimeout     = errors.New("timeoutMs is out of range")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrSearchNotFound     = errors.New("search not found")
	ErrBrandNotFound      = errors.New("brand not found in cache")
	ErrCacheCorrupt       = errors.New("brand cache file is corrupt")
)

// FetchError is a classified failure talking to the actor platform.
type FetchError struct {
	Kind    ErrorKind
	Message string
	Err     error
	// RunID is set once the platform has accepted a run.
	RunID string
}

func NewFetchError(kind ErrorKind, message string, err error) *FetchError {
	return &FetchError{Kind: kind, Message: message, Err: err}
}

// NewRunError is a failure observed while waiting on an accepted run.
func NewRunError(kind ErrorKind, runID, message string, err error) *FetchError {
	return &FetchError{Kind: kind, Message: message, Err: err, RunID: runID}
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf classifies any error into the fetch error taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetworkError
	}
	return KindUnknown
}

// IsRetryable reports whether another attempt may succeed for this kind.
func (k ErrorKind) IsRetryable() bool {
	switch k {
	case KindNetworkError, KindTimeout, KindRateLimited:
		return true
	}
	return false
}

// Retryable reports whether err may succeed on another attempt. Errors from a
// run the platform already accepted are final: that run keeps going upstream
// and a retry would start a second one.
func Retryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) && fe.RunID != "" {
		return false
	}
	return KindOf(err).IsRetryable()
}
