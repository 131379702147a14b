package chat

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a sync-core failure so callers can branch on the
// category instead of string-matching messages.
type ErrorCode string

const (
	// CodePermissionDenied: the viewer's tier may not post to the channel.
	// Synchronous, raised before any store mutation.
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// CodeDurableWriteFailed: the remote write did not persist. The
	// optimistic message stays visible, marked failed.
	CodeDurableWriteFailed ErrorCode = "DURABLE_WRITE_FAILED"

	// CodeTransportUnavailable: the push transport is down. Recoverable,
	// tracked by the health monitor; never fatal.
	CodeTransportUnavailable ErrorCode = "TRANSPORT_UNAVAILABLE"

	// CodeInvalidInput: a malformed payload or empty message body.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Sentinel errors for errors.Is checks.
var (
	ErrPermissionDenied     = &Error{Code: CodePermissionDenied, Message: "posting not permitted"}
	ErrDurableWriteFailed   = &Error{Code: CodeDurableWriteFailed, Message: "durable write failed"}
	ErrTransportUnavailable = &Error{Code: CodeTransportUnavailable, Message: "push transport unavailable"}
)

// Error is a structured sync-core error with a code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on the error code, so wrapped instances compare equal to the
// package sentinels.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// NewError builds a coded error wrapping an underlying cause.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from err, or "" when err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
