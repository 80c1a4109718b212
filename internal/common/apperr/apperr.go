// Package apperr defines the typed error kinds the acphost public API
// returns, using the same sentinel-plus-%w style common across this
// codebase's domain error handling.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can branch without string matching.
type Kind string

const (
	ConnectionFailed       Kind = "connection_failed"
	Timeout                Kind = "timeout"
	InvalidMessage         Kind = "invalid_message"
	CapabilityNotSupported Kind = "capability_not_supported"
	SessionNotFound        Kind = "session_not_found"
	SessionAlreadyExists   Kind = "session_already_exists"
	AgentNotFound          Kind = "agent_not_found"
	AgentAlreadyRunning    Kind = "agent_already_running"
	AgentSetupFailed       Kind = "agent_setup_failed"
	AccessDenied           Kind = "access_denied"
	PathNotGranted         Kind = "path_not_granted"
	FileNotFound           Kind = "file_not_found"
	DirectoryNotFound      Kind = "directory_not_found"
	InvalidPath            Kind = "invalid_path"
)

// Error is the single error type returned across the acphost public API.
// It always carries a Kind, a human message, and optionally the cause it
// wraps.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, apperr.New(SessionNotFound, "")) match on Kind
// alone, so callers can check for a category of failure without caring
// about the specific message or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that wraps cause, preserving it for errors.Unwrap
// and errors.As chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or anything it wraps) is an *Error of the given
// Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}
