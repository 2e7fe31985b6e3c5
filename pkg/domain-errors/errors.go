// Package domainerrors defines the error vocabulary shared by services and
// transports. Services attach a Code to every failure; transports translate
// codes to HTTP statuses without inspecting message text.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeUnauthorized means the caller identity could not be established.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden means the caller is known but lacks the required
	// role or ownership for the operation.
	CodeForbidden Code = "forbidden"
	// CodeBadRequest means the input itself is malformed (zero address,
	// empty hash, unknown role).
	CodeBadRequest Code = "bad_request"
	// CodeNotFound means a referenced entity does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict means the operation would violate a monotonic
	// invariant (already issued, already revoked, already processed).
	CodeConflict Code = "conflict"
	// CodeInternal covers infrastructure failures the caller cannot fix.
	CodeInternal Code = "internal"
)

// Error carries a code plus a stable human-readable reason. The reason
// strings for registry rejections are part of the public contract and must
// not be rephrased by upper layers.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// New builds a domain error with the given code and reason.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and reason to an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, wrapped: cause}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code onto an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Errorf builds a domain error with a formatted reason.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
