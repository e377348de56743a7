package errors

import "fmt"

// ErrorType classifies failures from the rewards API, the timeline API and
// the image store.
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed Error.
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether an error type is worth retrying.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status code indicates a
// retryable failure.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error, no response
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
