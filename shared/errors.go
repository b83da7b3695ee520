package shared

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode is the machine-parseable kind of a gateway failure.
// Codes form a closed enumeration; callers must never see free-form kinds.
type ErrorCode string

const (
	ErrorNotFound            ErrorCode = "NOT_FOUND"
	ErrorInvalidCursor       ErrorCode = "INVALID_CURSOR"
	ErrorBatchTooLarge       ErrorCode = "BATCH_TOO_LARGE"
	ErrorInvalidConfirmToken ErrorCode = "INVALID_CONFIRM_TOKEN"
	ErrorConfirmationNeeded  ErrorCode = "CONFIRMATION_REQUIRED"
	ErrorRateLimit           ErrorCode = "RATE_LIMIT"
	ErrorReadOnlyMode        ErrorCode = "READ_ONLY_MODE"
	ErrorValidation          ErrorCode = "VALIDATION_ERROR"
	ErrorUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrorUnknown             ErrorCode = "UNKNOWN_ERROR"

	// ErrorTransientUpstream is internal to the retry layer. It marks an
	// upstream failure as retryable and must never leave the gateway; after
	// the retry budget is exhausted it becomes ErrorUpstreamUnavailable.
	ErrorTransientUpstream ErrorCode = "TRANSIENT_UPSTREAM"
)

// GatewayError is the structured error returned across the gateway boundary.
type GatewayError struct {
	Code        ErrorCode     `json:"code"`
	Message     string        `json:"message"`
	Suggestion  string        `json:"suggestion,omitempty"`
	Recoverable bool          `json:"recoverable"`
	RetryAfter  time.Duration `json:"retryAfter,omitempty"`
}

// Error implements the Go error interface for GatewayError.
func (e *GatewayError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a GatewayError with the given code and formatted message.
func NewError(code ErrorCode, format string, args ...interface{}) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithSuggestion attaches an actionable hint and returns the same error.
func (e *GatewayError) WithSuggestion(s string) *GatewayError {
	e.Suggestion = s
	return e
}

// NewRateLimitError creates a RATE_LIMIT error carrying the wait hint.
func NewRateLimitError(retryAfter time.Duration) *GatewayError {
	return &GatewayError{
		Code:        ErrorRateLimit,
		Message:     "rate limit exceeded",
		Suggestion:  fmt.Sprintf("retry after %s", retryAfter),
		Recoverable: true,
		RetryAfter:  retryAfter,
	}
}

// NewTransientError marks an upstream failure as retryable. Only the retry
// policy inspects this code; see FinalizeUpstreamError.
func NewTransientError(err error) *GatewayError {
	return &GatewayError{
		Code:        ErrorTransientUpstream,
		Message:     err.Error(),
		Recoverable: true,
	}
}

// FinalizeUpstreamError converts an exhausted transient error into the
// caller-visible UPSTREAM_UNAVAILABLE. Other errors pass through unchanged.
func FinalizeUpstreamError(err error) error {
	var ge *GatewayError
	if errors.As(err, &ge) && ge.Code == ErrorTransientUpstream {
		return &GatewayError{
			Code:        ErrorUpstreamUnavailable,
			Message:     ge.Message,
			Suggestion:  "the upstream did not recover within the retry budget; try again later",
			Recoverable: true,
		}
	}
	return err
}

// AsGatewayError extracts a *GatewayError from err, wrapping anything else
// as UNKNOWN_ERROR so no failure is ever silently swallowed or left untyped.
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	return &GatewayError{
		Code:    ErrorUnknown,
		Message: err.Error(),
	}
}

// IsCode reports whether err is a GatewayError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Code == code
}
