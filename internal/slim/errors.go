package slim

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes IR errors.
type ErrorCode string

const (
	// CodeResolution indicates a type or member could not be found, or was
	// ambiguous, after substitution or native resolution.
	CodeResolution ErrorCode = "RESOLUTION"

	// CodeMapping indicates recordization found an unmapped, duplicate or
	// conflicting mapping.
	CodeMapping ErrorCode = "MAPPING"

	// CodeDerivation indicates no common or compatible type exists for a
	// node's children.
	CodeDerivation ErrorCode = "DERIVATION"

	// CodeArgument indicates nil, empty or malformed input to an entry point.
	CodeArgument ErrorCode = "ARGUMENT"
)

// Error is the error type returned by every IR operation.
//
// All errors are terminal for the operation that raised them: there is no
// partial result and no internal retry.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Subject names the offending type, member or node, when known.
	Subject string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewResolutionError creates a RESOLUTION error.
func NewResolutionError(subject, format string, args ...any) *Error {
	return &Error{Code: CodeResolution, Message: fmt.Sprintf(format, args...), Subject: subject}
}

// NewMappingError creates a MAPPING error.
func NewMappingError(subject, format string, args ...any) *Error {
	return &Error{Code: CodeMapping, Message: fmt.Sprintf(format, args...), Subject: subject}
}

// NewDerivationError creates a DERIVATION error.
func NewDerivationError(subject, format string, args ...any) *Error {
	return &Error{Code: CodeDerivation, Message: fmt.Sprintf(format, args...), Subject: subject}
}

// NewArgumentError creates an ARGUMENT error.
func NewArgumentError(subject, format string, args ...any) *Error {
	return &Error{Code: CodeArgument, Message: fmt.Sprintf(format, args...), Subject: subject}
}

// WithCause attaches an underlying cause and returns e.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsResolutionError reports whether err is a RESOLUTION error.
// Uses errors.As to handle wrapped errors.
func IsResolutionError(err error) bool {
	return CodeOf(err) == CodeResolution
}

// IsMappingError reports whether err is a MAPPING error.
func IsMappingError(err error) bool {
	return CodeOf(err) == CodeMapping
}

// IsDerivationError reports whether err is a DERIVATION error.
func IsDerivationError(err error) bool {
	return CodeOf(err) == CodeDerivation
}

// IsArgumentError reports whether err is an ARGUMENT error.
func IsArgumentError(err error) bool {
	return CodeOf(err) == CodeArgument
}
