package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *APIError {
	return &APIError{
		Code:    ErrUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// Forbidden creates a FORBIDDEN error
func Forbidden(message string) *APIError {
	return &APIError{
		Code:    ErrForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// ValidationError creates a VALIDATION_ERROR
func ValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrValidation,
		Message: message,
		Status:  http.StatusUnprocessableEntity,
	}
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return &APIError{
		Code:    ErrBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return &APIError{
		Code:    ErrInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// Timeout creates a TIMEOUT error. Timeouts are a distinct, catchable variant
// so callers can tell a hung fetch apart from a data error.
func Timeout(operation string) *APIError {
	return &APIError{
		Code:    ErrTimeout,
		Message: fmt.Sprintf("%s timed out", operation),
		Status:  http.StatusGatewayTimeout,
	}
}

// Verification creates a VERIFICATION_FAILED error for writes whose read-back
// did not confirm the expected state.
func Verification(operation string) *APIError {
	return &APIError{
		Code:    ErrVerification,
		Message: fmt.Sprintf("%s could not be verified", operation),
		Status:  http.StatusConflict,
	}
}

// NavigationBlocked creates a NAVIGATION_BLOCKED error carrying the number of
// pending notifications holding the operator on the current screen.
func NavigationBlocked(pending int) *APIError {
	return &APIError{
		Code:    ErrNavigationBlocked,
		Message: fmt.Sprintf("%d pending transaction notification(s) must be handled first", pending),
		Status:  http.StatusConflict,
	}
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// IsTimeout reports whether err is (or wraps) a TIMEOUT APIError.
func IsTimeout(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrTimeout
}

// IsVerification reports whether err is (or wraps) a VERIFICATION_FAILED APIError.
func IsVerification(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrVerification
}
