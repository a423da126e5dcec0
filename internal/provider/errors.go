package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure for recovery decisions.
type ErrorKind string

const (
	// KindTimeout: the provider did not answer within its budget. Recovered
	// locally at the executor.
	KindTimeout ErrorKind = "timeout"
	// KindUnavailable: the provider or its backing service refused or errored.
	// Recovered locally at the executor.
	KindUnavailable ErrorKind = "unavailable"
	// KindAuth: credentials were rejected. Not locally recoverable; the
	// orchestrator surfaces it as a top-level failure.
	KindAuth ErrorKind = "auth"
	// KindDeadline: the overall query deadline expired.
	KindDeadline ErrorKind = "deadline"
)

func (k ErrorKind) Valid() bool {
	switch k {
	case KindTimeout, KindUnavailable, KindAuth, KindDeadline:
		return true
	}
	return false
}

// Error is a classified provider failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified provider error wrapping cause (which may be nil).
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the ErrorKind from err. Unclassified errors report
// KindUnavailable, the conservative local-recovery kind.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnavailable
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}
