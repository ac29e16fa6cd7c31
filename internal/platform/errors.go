package platform

import (
	"errors"
	"fmt"
)

// ErrorKind classifies adapter failures so callers can decide between
// reverification, retry on the next cycle, or deferral.
type ErrorKind string

const (
	// KindCredential means the bundle is missing or incomplete. Not
	// retryable without reverification.
	KindCredential ErrorKind = "credential"

	// KindAuthRejected means the platform redirected to its login or
	// checkpoint flow. Requires fresh credentials.
	KindAuthRejected ErrorKind = "auth_rejected"

	// KindTransient covers DOM/API hiccups and spam filtering. Terminal
	// for this attempt, retryable on the next cycle.
	KindTransient ErrorKind = "transient"

	// KindRateLimited means the platform throttled the call. Expected,
	// items are simply deferred.
	KindRateLimited ErrorKind = "rate_limited"
)

// AdapterError is the typed failure every adapter operation returns,
// making failure handling a contract rather than a convention.
type AdapterError struct {
	Kind     ErrorKind
	Platform string
	Op       string // verify, scrape, post
	Msg      string
	Err      error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Platform, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Platform, e.Op, e.Msg)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewCredentialError reports missing or incomplete secret material
func NewCredentialError(platform, op, msg string) *AdapterError {
	return &AdapterError{Kind: KindCredential, Platform: platform, Op: op, Msg: msg}
}

// NewAuthRejected reports a detected login/checkpoint redirect
func NewAuthRejected(platform, op, msg string) *AdapterError {
	return &AdapterError{Kind: KindAuthRejected, Platform: platform, Op: op, Msg: msg}
}

// NewTransient reports a per-attempt failure retryable on the next cycle
func NewTransient(platform, op, msg string, err error) *AdapterError {
	return &AdapterError{Kind: KindTransient, Platform: platform, Op: op, Msg: msg, Err: err}
}

// NewRateLimited reports platform throttling
func NewRateLimited(platform, op, msg string) *AdapterError {
	return &AdapterError{Kind: KindRateLimited, Platform: platform, Op: op, Msg: msg}
}

// KindOf extracts the error kind, defaulting unknown errors to transient
func KindOf(err error) ErrorKind {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}

// IsAuthRejected reports whether the error is a session-expired failure
// that requires reverification
func IsAuthRejected(err error) bool {
	return KindOf(err) == KindAuthRejected
}

// IsCredential reports whether the error is a missing/invalid bundle
func IsCredential(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Kind == KindCredential
}
