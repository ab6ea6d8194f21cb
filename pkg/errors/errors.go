package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	CodeNotFound            = "NOT_FOUND"
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeInternal            = "INTERNAL_ERROR"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeOrderNotFound       = "ORDER_NOT_FOUND"
	CodeStaleReadCursor     = "STALE_READ_CURSOR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInvariantViolation  = "INVARIANT_VIOLATION"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Validation reports input that passed binding but failed a domain rule.
func Validation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the AppError code in err's chain, or INTERNAL_ERROR.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
		Err:     nil,
	}
}

func TooManyRequests(message string, retryAfter time.Duration) *AppError {
	if retryAfter > 0 {
		message = fmt.Sprintf("%s, retry in %s", message, retryAfter.Round(time.Second))
	}
	return &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     nil,
	}
}

// InvalidTransition means the order moved on since the caller last looked.
// Clients re-fetch the order instead of retrying blindly.
func InvalidTransition(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func InsufficientFunds(message string) *AppError {
	return &AppError{
		Code:    CodeInsufficientFunds,
		Message: message,
		Status:  http.StatusPaymentRequired,
	}
}

func OrderNotFound(err error) *AppError {
	return &AppError{
		Code:    CodeOrderNotFound,
		Message: "Order not found",
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

// StaleReadCursor is never rendered to clients; callers treat it as a no-op.
func StaleReadCursor() *AppError {
	return &AppError{
		Code:    CodeStaleReadCursor,
		Message: "Read cursor is already at or past this message",
		Status:  http.StatusOK,
	}
}

func UpstreamUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUpstreamUnavailable,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func InvariantViolation(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInvariantViolation,
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}
