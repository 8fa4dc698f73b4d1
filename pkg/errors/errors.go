package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// ErrorTypeQuotaRejected is a per-user quota rejection. No job was
	// started and nothing was charged.
	ErrorTypeQuotaRejected ErrorType = "quota_rejected"
	// ErrorTypeServiceQuota is the external provider's own usage limit.
	// Distinct from a per-user rejection and never retryable.
	ErrorTypeServiceQuota ErrorType = "service_quota"
	// ErrorTypeJobFailed is a terminal FAILED/ABORTED status from the
	// scraping service.
	ErrorTypeJobFailed ErrorType = "job_failed"
	// ErrorTypeJobTimeout is raised when polling exhausts its attempt budget.
	ErrorTypeJobTimeout ErrorType = "job_timeout"

	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error
func New(errorType ErrorType, message string, code int) *Error {
	return &Error{Type: errorType, Message: message, Code: code}
}

// IsType reports whether err is a typed Error of the given type
func IsType(err error, errorType ErrorType) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type == errorType
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeQuotaRejected, ErrorTypeServiceQuota, ErrorTypeJobFailed,
		ErrorTypeJobTimeout, ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}
