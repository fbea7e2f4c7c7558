package kvstore

import (
	"errors"
	"fmt"
)

// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.
const (
	codeInternal = "internal"
	codeInvalid  = "invalid"
	codeNotFound = "not_found"
)

// StoreError represents a store-specific error with a code and message.
type StoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *StoreError) ErrorCode() string {
	return e.Code
}

// Is matches on code so that wrapped instances satisfy errors.Is(err, ErrNotFound).
func (e *StoreError) Is(target error) bool {
	var t *StoreError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Err == nil && e.Code == codeNotFound
}

var (
	// ErrNotFound is returned by Get when no value is stored at the key.
	ErrNotFound = &StoreError{Code: codeNotFound, Message: "key not found"}

	// ErrR2AccountIDRequired is returned when R2 account ID is missing.
	ErrR2AccountIDRequired = &StoreError{Code: codeInvalid, Message: "R2 account ID is required"}

	// ErrR2CredentialsRequired is returned when R2 credentials are missing.
	ErrR2CredentialsRequired = &StoreError{Code: codeInvalid, Message: "R2 credentials are required"}

	// ErrR2BucketRequired is returned when R2 bucket name is missing.
	ErrR2BucketRequired = &StoreError{Code: codeInvalid, Message: "R2 bucket name is required"}

	// ErrEmptyKey is returned for operations on the empty key.
	ErrEmptyKey = &StoreError{Code: codeInvalid, Message: "key must not be empty"}
)

// ErrKeyNotFound creates a not found error naming key.
func ErrKeyNotFound(key string) error {
	return &StoreError{
		Code:    codeNotFound,
		Message: fmt.Sprintf("key not found: %s", key),
	}
}

// ErrUnknownProvider creates an error for unknown store providers.
func ErrUnknownProvider(provider string) error {
	return &StoreError{
		Code:    codeInvalid,
		Message: fmt.Sprintf("unknown store provider: %s", provider),
	}
}

// backendError wraps a failure from the underlying backend.
func backendError(op string, err error) error {
	return &StoreError{Code: codeInternal, Message: op, Err: err}
}
