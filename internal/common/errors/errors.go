// Package errors provides the standardized error type shared by the client layers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeSessionUnauthorized  ErrorCode = "SESSION_UNAUTHORIZED"

	ErrCodeTransportFailed   ErrorCode = "TRANSPORT_FAILED"
	ErrCodeTimeout           ErrorCode = "TIMEOUT_ERROR"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeAPIError          ErrorCode = "API_ERROR"

	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeStorageCorrupted   ErrorCode = "STORAGE_CORRUPTED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Messages surfaced to the user when the server did not supply one.
const (
	MsgAuthenticationFailed = "Authentication failed"
	MsgConnectionFailed     = "Connection failed"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("StandardError[%s/%d]: %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a metadata entry and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(field, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Validation failed",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationError creates a non-retryable login rejection. message is the
// server-supplied reason; an empty message falls back to a generic one.
func NewAuthenticationError(message string) *StandardError {
	if message == "" {
		message = MsgAuthenticationFailed
	}
	return &StandardError{
		Code:      ErrCodeAuthenticationFailed,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError reports a 401 from the backend.
func NewUnauthorizedError(message string) *StandardError {
	if message == "" {
		message = "Invalid or expired session"
	}
	return &StandardError{
		Code:       ErrCodeSessionUnauthorized,
		Message:    message,
		Retryable:  false,
		StatusCode: http.StatusUnauthorized,
		Timestamp:  time.Now().UTC(),
	}
}

// NewTransportError creates a retryable network-level failure.
func NewTransportError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   MsgConnectionFailed,
		Details:   fmt.Sprintf("service: %s, error: %v", service, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   MsgConnectionFailed,
		Details:   fmt.Sprintf("service '%s' timeout: %v", service, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewMalformedResponseError reports a body that could not be decoded.
func NewMalformedResponseError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   MsgConnectionFailed,
		Details:   fmt.Sprintf("service: %s, decode error: %v", service, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAPIError creates an error for a non-2xx, non-401 response. Server errors are
// retryable, client errors are not.
func NewAPIError(statusCode int, message string) *StandardError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &StandardError{
		Code:       ErrCodeAPIError,
		Message:    message,
		Retryable:  statusCode >= http.StatusInternalServerError,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}
}

// NewStorageUnavailableError reports a backend that could not be read or written.
func NewStorageUnavailableError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUnavailable,
		Message:   "Storage unavailable",
		Details:   fmt.Sprintf("key: %s, error: %v", key, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStorageCorruptedError reports a stored value that failed to decode.
func NewStorageCorruptedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageCorrupted,
		Message:   "Stored value is corrupted",
		Details:   fmt.Sprintf("key: %s, error: %v", key, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// As extracts a StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return HasCode(err, ErrCodeSessionUnauthorized)
}

// IsRetryable reports whether an operation that failed with err may be retried.
func IsRetryable(err error) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Retryable
}

// IsRetryableErrorCode checks if an error code is retryable regardless of status.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeTransportFailed, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns a coarse category for logging.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "validation"
	case ErrCodeAuthenticationFailed:
		return "authentication"
	case ErrCodeSessionUnauthorized:
		return "authorization"
	case ErrCodeTransportFailed, ErrCodeTimeout, ErrCodeMalformedResponse:
		return "transport"
	case ErrCodeAPIError:
		return "api"
	case ErrCodeStorageUnavailable, ErrCodeStorageCorrupted:
		return "storage"
	default:
		return "internal"
	}
}

// UserMessage returns the human-readable message for err, falling back to fallback
// when err is not a StandardError or carries no message.
func UserMessage(err error, fallback string) string {
	if stdErr, ok := As(err); ok && stdErr.Message != "" {
		return stdErr.Message
	}
	return fallback
}
