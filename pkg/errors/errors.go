// Package errors defines the typed errors produced by a heap dump run.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
//
// LAYOUT_ERROR and FIELD_ACCESS_ERROR are recoverable: the walker logs them
// and keeps going. REGISTRY_INVARIANT and ROOT_ENUMERATION_ERROR abort the run
// before any output is written.
const (
	CodeUnknown         = "UNKNOWN_ERROR"
	CodeLayout          = "LAYOUT_ERROR"
	CodeFieldAccess     = "FIELD_ACCESS_ERROR"
	CodeRegistry        = "REGISTRY_INVARIANT"
	CodeRootEnumeration = "ROOT_ENUMERATION_ERROR"
	CodeSerialize       = "SERIALIZE_ERROR"
	CodeStorageError    = "STORAGE_ERROR"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeConfigError     = "CONFIG_ERROR"
	CodeDumpInProgress  = "DUMP_IN_PROGRESS"
)

// AppError carries a code, a message and an optional cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is matching.
var (
	ErrLayout          = New(CodeLayout, "fixed layout unavailable")
	ErrFieldAccess     = New(CodeFieldAccess, "field access failed")
	ErrRegistry        = New(CodeRegistry, "registry invariant violated")
	ErrRootEnumeration = New(CodeRootEnumeration, "root enumeration failed")
	ErrSerialize       = New(CodeSerialize, "serialization failed")
	ErrStorageError    = New(CodeStorageError, "storage error")
	ErrDatabaseError   = New(CodeDatabaseError, "database error")
	ErrInvalidInput    = New(CodeInvalidInput, "invalid input")
	ErrNotFound        = New(CodeNotFound, "resource not found")
	ErrConfigError     = New(CodeConfigError, "configuration error")
	ErrDumpInProgress  = New(CodeDumpInProgress, "a dump is already running")
)

// IsFatal reports whether err must abort a dump run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRegistry) || errors.Is(err, ErrRootEnumeration)
}

// IsFieldAccessError checks if the error is a field access error.
func IsFieldAccessError(err error) bool {
	return errors.Is(err, ErrFieldAccess)
}

// IsRegistryError checks if the error is a registry invariant violation.
func IsRegistryError(err error) bool {
	return errors.Is(err, ErrRegistry)
}

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
