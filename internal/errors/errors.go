package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeUnparseableID     = "UNPARSEABLE_ID"
	CodeMissingData       = "MISSING_DATA"
	CodeMalformedResult   = "MALFORMED_RESULT"
	CodeInsufficientData  = "INSUFFICIENT_DATA"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeOutputWriteFailed = "OUTPUT_WRITE_FAILED"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func UnparseableID(id string, cause error) *AppError {
	return &AppError{
		Code:    CodeUnparseableID,
		Message: fmt.Sprintf("cannot parse experiment unit id %q", id),
		Cause:   cause,
	}
}

func MissingData(what string, cause error) *AppError {
	return &AppError{
		Code:    CodeMissingData,
		Message: fmt.Sprintf("%s not available", what),
		Cause:   cause,
	}
}

func MalformedResult(path string, cause error) *AppError {
	return &AppError{
		Code:    CodeMalformedResult,
		Message: fmt.Sprintf("malformed result file %s", path),
		Cause:   cause,
	}
}

func InsufficientData(strategy string, cause error) *AppError {
	return &AppError{
		Code:    CodeInsufficientData,
		Message: fmt.Sprintf("strategy %s could not be fitted", strategy),
		Cause:   cause,
	}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func OutputWriteFailed(path string, cause error) *AppError {
	return &AppError{
		Code:    CodeOutputWriteFailed,
		Message: fmt.Sprintf("failed to write %s", path),
		Cause:   cause,
	}
}
