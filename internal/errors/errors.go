package errors

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeNotAuthorized ErrorCode = "NOT_AUTHORIZED"

	// Validation
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Resource
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeNoSubscription ErrorCode = "NO_SUBSCRIPTION"
	ErrCodeClaimNotFound  ErrorCode = "CLAIM_NOT_FOUND"

	// Business rules
	ErrCodeDuplicateClaim  ErrorCode = "DUPLICATE_CLAIM"
	ErrCodeInvalidState    ErrorCode = "INVALID_STATE"
	ErrCodeNotActive       ErrorCode = "NOT_ACTIVE"
	ErrCodeAlreadyResolved ErrorCode = "ALREADY_RESOLVED"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Infrastructure
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeDeliveryFailure  ErrorCode = "DELIVERY_FAILURE"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NotAuthorized() *AppError {
	return New(ErrCodeNotAuthorized, "Administrator privileges required")
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func NoSubscription() *AppError {
	return New(ErrCodeNoSubscription, "Account has no subscription")
}

func ClaimNotFound() *AppError {
	return New(ErrCodeClaimNotFound, "Payment claim not found")
}

func DuplicateClaim() *AppError {
	return New(ErrCodeDuplicateClaim, "A payment claim was already submitted today")
}

func InvalidState(message string) *AppError {
	return New(ErrCodeInvalidState, message)
}

func NotActive(status string) *AppError {
	return New(ErrCodeNotActive, fmt.Sprintf("Subscription status %s does not accept payment claims", status))
}

func AlreadyResolved(status string) *AppError {
	return New(ErrCodeAlreadyResolved, fmt.Sprintf("Payment claim already %s", status))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func StoreUnavailable(cause error) *AppError {
	return Wrap(ErrCodeStoreUnavailable, "Store unavailable", cause)
}

func DeliveryFailure(cause error) *AppError {
	return Wrap(ErrCodeDeliveryFailure, "Notification delivery failed", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsTransient reports whether a retry later may succeed.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case ErrCodeStoreUnavailable, ErrCodeDeliveryFailure:
		return true
	}
	return false
}

// UserMessage returns short text safe to show to a chat user.
func UserMessage(err error) string {
	switch GetCode(err) {
	case ErrCodeNotAuthorized:
		return "This command is only available to the administrator."
	case ErrCodeNotFound:
		return "You are not registered yet. Send /start first."
	case ErrCodeNoSubscription:
		return "You don't have a subscription yet. Contact the administrator."
	case ErrCodeNotActive:
		return "Your subscription can't accept a payment report right now. Contact the administrator."
	case ErrCodeDuplicateClaim:
		return "You already reported a payment today. Please wait for the administrator."
	case ErrCodeRateLimitExceeded:
		return "Too many requests. Please wait a minute."
	case ErrCodeInvalidInput, ErrCodeValidation, ErrCodeInvalidState:
		if appErr, ok := AsAppError(err); ok {
			return appErr.Message
		}
	}
	return "Something went wrong. Please try again later."
}

// AdminMessage includes the code and a bounded excerpt of the underlying error.
func AdminMessage(err error, maxLen int) string {
	if err == nil {
		return ""
	}
	return "Error: " + Truncate(err.Error(), maxLen)
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
