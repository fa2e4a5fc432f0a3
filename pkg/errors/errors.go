package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the different failure classes of an upstream call
type ErrorType string

const (
	// ErrorTypeNetwork is a transport failure: refused connection, reset, timeout.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeIntercepted is an empty body or HTTP 202 from the WAF.
	ErrorTypeIntercepted ErrorType = "intercepted"
	// ErrorTypeSessionExpired is a JSON envelope carrying a rejection code.
	ErrorTypeSessionExpired ErrorType = "session_expired"
	ErrorTypeParsing        ErrorType = "parsing"
	// ErrorTypeAPI is a well-formed envelope with a non-zero, non-rejection code.
	ErrorTypeAPI ErrorType = "api"
	// ErrorTypeAuth means there is no usable credential set.
	ErrorTypeAuth    ErrorType = "auth"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error represents an upstream error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Code: code, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsNetwork reports whether err is a transport failure
func IsNetwork(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeNetwork
}

// IsRefreshable checks if an error type means the credentials should be
// discarded and the request tried once more
func IsRefreshable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeIntercepted, ErrorTypeSessionExpired, ErrorTypeParsing, ErrorTypeAuth:
		return true
	case ErrorTypeNetwork, ErrorTypeAPI:
		return false
	default:
		return false
	}
}
