package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures the pipeline can encounter
type ErrorType string

const (
	ErrorTypeRetryableNetwork ErrorType = "retryable_network"
	ErrorTypeRateLimited      ErrorType = "rate_limited"
	ErrorTypeNonRetryable     ErrorType = "non_retryable_network"
	ErrorTypeDecode           ErrorType = "decode"
	ErrorTypePersist          ErrorType = "persist"
	ErrorTypeConfig           ErrorType = "config"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeUnknown          ErrorType = "unknown"
)

// Error carries the failure class alongside the message and, for HTTP
// failures, the status code that produced it
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without an underlying cause
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap attaches a failure class to an underlying error
func Wrap(err error, errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// NewHTTP creates a typed error for an HTTP response status
func NewHTTP(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Message: message, Code: code}
}

// TypeOf extracts the failure class from an error chain.
// Errors produced outside this package report ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether the error is transient and worth another
// attempt. Unknown errors are treated as retryable so plain transport
// failures (timeouts, connection resets) get the backoff path.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if stderrors.As(err, &e) {
		switch e.Type {
		case ErrorTypeRetryableNetwork, ErrorTypeRateLimited:
			return true
		default:
			return false
		}
	}
	return true
}

// IsDecode reports whether the error chain carries a payload decode failure
func IsDecode(err error) bool {
	return TypeOf(err) == ErrorTypeDecode
}

// IsPersist reports whether the error chain carries a store write failure
func IsPersist(err error) bool {
	return TypeOf(err) == ErrorTypePersist
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// FromStatusCode maps a non-200 HTTP status onto the taxonomy
func FromStatusCode(statusCode int, message string) *Error {
	switch {
	case statusCode == 429:
		return NewHTTP(ErrorTypeRateLimited, statusCode, message)
	case IsRetryableStatusCode(statusCode):
		return NewHTTP(ErrorTypeRetryableNetwork, statusCode, message)
	case statusCode == 404:
		return NewHTTP(ErrorTypeNotFound, statusCode, message)
	default:
		return NewHTTP(ErrorTypeNonRetryable, statusCode, message)
	}
}
