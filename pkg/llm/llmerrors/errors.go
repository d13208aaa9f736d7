// Package llmerrors provides structured error classification for LLM API interactions.
package llmerrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of LLM errors.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content errors.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeMalformedOutput represents responses the caller could not parse
	// into the expected structured form.
	ErrorTypeMalformedOutput
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeMalformedOutput:
		return "malformed_output"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error is a classified LLM error.
type Error struct {
	Type    ErrorType
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewError creates a classified error with the given type and message.
func NewError(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Is reports whether err carries the given classification.
func Is(err error, errType ErrorType) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Type == errType
	}
	return false
}

// TypeOf returns the classification of err, sniffing common API error
// strings when err is not already classified.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Type
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429") || strings.Contains(errStr, "quota"):
		return ErrorTypeRateLimit
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "api key"):
		return ErrorTypeAuth
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") ||
		strings.Contains(errStr, "connection") || strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504"):
		return ErrorTypeTransient
	case strings.Contains(errStr, "empty response"):
		return ErrorTypeEmptyResponse
	default:
		return ErrorTypeUnknown
	}
}
