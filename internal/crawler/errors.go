package crawler

import (
	"errors"
	"fmt"
)

// Engine construction errors.
// These are returned by New before any page is fetched.
var (
	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL
	// with a host.
	ErrInvalidSeed = errors.New("invalid seed: must be an absolute http or https URL")

	// ErrInvalidWorkers is returned when the worker count is negative.
	// Zero is valid and selects the synchronous single-loop mode.
	ErrInvalidWorkers = errors.New("invalid worker count: must be non-negative")

	// ErrInvalidTimeout is returned when the queue idle timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid idle timeout: must be positive")

	// ErrNilFetcher is returned when no Fetcher is supplied.
	ErrNilFetcher = errors.New("fetcher must not be nil")

	// ErrAlreadyRun is returned when Run is called a second time on one Engine.
	ErrAlreadyRun = errors.New("engine has already run")
)

// errWorkerFatal marks a fetch failure that terminates the worker which hit it.
var errWorkerFatal = errors.New("worker terminated by unrecoverable fetch error")

// ErrorKind classifies a fetch failure.
type ErrorKind int

const (
	// KindOther is any failure that is not one of the recognized network
	// conditions. It is fatal to the worker that observed it.
	KindOther ErrorKind = iota

	// KindTimeout means the request or body read exceeded its deadline.
	KindTimeout

	// KindHTTPStatus means the server answered with a non-success status.
	KindHTTPStatus

	// KindNetwork means the connection could not be established or broke.
	KindNetwork
)

// String returns the lower-case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http status"
	case KindNetwork:
		return "network"
	default:
		return "other"
	}
}

// FetchError describes a failed page fetch.
type FetchError struct {
	// Kind is the failure class used for transient/fatal classification.
	Kind ErrorKind

	// URL is the page that failed.
	URL string

	// StatusCode is set for KindHTTPStatus.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s error", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a fetch failure the crawl recovers from:
// the page becomes a dead end and the worker continues. Timeouts, HTTP status
// failures and network failures are transient; everything else is not.
func IsTransient(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case KindTimeout, KindHTTPStatus, KindNetwork:
		return true
	default:
		return false
	}
}
