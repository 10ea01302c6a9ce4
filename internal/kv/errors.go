package kv

import (
	"errors"
	"fmt"
)

// Error is the typed error returned by filter compilation, update preparation
// and the store.
//
// Code identifies which stage failed so callers can react without string
// matching. Err holds the underlying cause, if any.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the wrapped cause.
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// ErrCodeEncryption indicates a tag-name, tag-value or entry encryption failed.
	ErrCodeEncryption ErrorCode = "ENCRYPTION"

	// ErrCodeTimestamp indicates an expiry offset overflowed the representable range.
	ErrCodeTimestamp ErrorCode = "TIMESTAMP"

	// ErrCodeStructural indicates a malformed or unsupported tag query.
	ErrCodeStructural ErrorCode = "STRUCTURAL"

	// ErrCodeNotFound indicates the requested entry or profile does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDuplicate indicates an insert collided with an existing entry.
	ErrCodeDuplicate ErrorCode = "DUPLICATE"

	// ErrCodeBackend indicates the SQL backend rejected a statement.
	ErrCodeBackend ErrorCode = "BACKEND"

	// ErrCodeInput indicates invalid caller input.
	ErrCodeInput ErrorCode = "INPUT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error with the given code wrapping err.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsEncryptionError reports whether err is an encryption failure.
func IsEncryptionError(err error) bool { return CodeOf(err) == ErrCodeEncryption }

// IsTimestampError reports whether err is an expiry overflow.
func IsTimestampError(err error) bool { return CodeOf(err) == ErrCodeTimestamp }

// IsStructuralError reports whether err is a malformed tag query.
func IsStructuralError(err error) bool { return CodeOf(err) == ErrCodeStructural }

// IsNotFound reports whether err is a missing entry or profile.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsDuplicate reports whether err is a duplicate insert.
func IsDuplicate(err error) bool { return CodeOf(err) == ErrCodeDuplicate }
