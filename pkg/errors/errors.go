package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the different failure classes of a fetch
type ErrorType string

const (
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeRetryExhausted    ErrorType = "retry_exhausted"
	ErrorTypeHTTPStatus        ErrorType = "http_status"
	ErrorTypeConnection        ErrorType = "connection"
	ErrorTypeRequest           ErrorType = "request"
	ErrorTypeSchema            ErrorType = "schema"
	ErrorTypeMissingCredential ErrorType = "missing_credential"
	ErrorTypeStorage           ErrorType = "storage"
)

var (
	// ErrMissingCredential is wrapped by every missing_credential error
	ErrMissingCredential = stderrors.New("no access token")

	// ErrInvalidResponse is wrapped by every schema error
	ErrInvalidResponse = stderrors.New("invalid response")
)

// Error represents a failed request or page with type information
type Error struct {
	Type        ErrorType
	Message     string
	Code        int
	URL         string
	Attempt     int
	MaxAttempts int
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error type may be retried. Only a timeout is;
// everything else aborts the run.
func IsRetryable(errorType ErrorType) bool {
	return errorType == ErrorTypeTimeout
}

// IsRetryableStatusCode checks if a status code belongs to the retry set
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// TypeOf returns the ErrorType carried by err, or "" when err is not an *Error
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// Is reports whether err carries the given error type
func Is(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// New creates a typed error without a cause
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// IsTerminal reports whether err ends a fetch. Every error the requester or
// paginator returns is terminal; only a timeout observed inside the retry
// loop is not.
func IsTerminal(err error) bool {
	return err != nil && !IsRetryable(TypeOf(err))
}
