// Package errs provides the unified error type used across all of wsio.
//
// Every subsystem (store, filestore, creds, resolver, server, …) wraps its
// native errors into *errs.Error before returning them to callers. Callers
// use the Is* predicates to handle errors without importing driver-specific
// packages.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindConnectionFailed, "endpoint unreachable", cause)
//
//	// In a handler — check error kind:
//	if errs.IsDuplicate(err) {
//	    http.Error(w, "already exists", http.StatusConflict)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MySQL, MinIO, S3, STS, …) map their native errors
// to one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown            ErrKind = iota
	ErrKindNotFound                   // no rows, no object, unknown node
	ErrKindDuplicate                  // unique constraint hit (node name, root, workspace)
	ErrKindConflict                   // root base path overlaps an existing root
	ErrKindNoMatchingRoot             // no registered root covers the requested path
	ErrKindConnectionFailed           // cannot reach the backend / endpoint probe failed
	ErrKindTimeout                    // context deadline / cancellation
	ErrKindQueryFailed                // SQL or storage operation error
	ErrKindInvalidInput               // bad arguments from the caller
	ErrKindPermissionDenied           // access denied / auth failure
	ErrKindCredentialExchange         // session token could not be obtained or renewed
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindDuplicate:
		return "duplicate"
	case ErrKindConflict:
		return "conflict"
	case ErrKindNoMatchingRoot:
		return "no_matching_root"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindCredentialExchange:
		return "credential_exchange"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all wsio subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an *Error with a formatted message and no cause.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, missing object, unknown node, …).
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsDuplicate reports whether err was caused by a uniqueness violation,
// such as creating a second node with an existing name.
func IsDuplicate(err error) bool {
	return kindOf(err) == ErrKindDuplicate
}

// IsConflict reports whether err was caused by a root base path overlapping
// an existing root on the same node and bucket.
func IsConflict(err error) bool {
	return kindOf(err) == ErrKindConflict
}

// IsNoMatchingRoot reports whether err means no registered root covers the
// requested logical path.
func IsNoMatchingRoot(err error) bool {
	return kindOf(err) == ErrKindNoMatchingRoot
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure,
// including a node endpoint that failed its reachability probe.
func IsConnectionFailed(err error) bool {
	return kindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure
// (SQL execution error, storage I/O error, …).
func IsQueryFailed(err error) bool {
	return kindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return kindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return kindOf(err) == ErrKindPermissionDenied
}

// IsCredentialExchange reports whether err means a session token could not
// be obtained, or a retry after a fresh exchange still failed.
func IsCredentialExchange(err error) bool {
	return kindOf(err) == ErrKindCredentialExchange
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
