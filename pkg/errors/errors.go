package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned values compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NotFound", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "the request conflicted with a concurrent change, please try again")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error, no changes were applied")
	ErrRateLimited  = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Enrollment rejection reasons. Codes are stable, user-visible strings.
var (
	ErrStudentInactive     = New("StudentInactive", http.StatusUnprocessableEntity, "student is not active")
	ErrWindowClosed        = New("WindowClosed", http.StatusUnprocessableEntity, "enrollment window is closed")
	ErrOfferingNotOpen     = New("OfferingNotOpen", http.StatusUnprocessableEntity, "course offering is not open for enrollment")
	ErrDepartmentMismatch  = New("DepartmentMismatch", http.StatusUnprocessableEntity, "course offering belongs to another department")
	ErrCapacityFull        = New("CapacityFull", http.StatusUnprocessableEntity, "course capacity is full")
	ErrCreditLimitExceeded = New("CreditLimitExceeded", http.StatusUnprocessableEntity, "semester credit limit exceeded")
	ErrAlreadyEnrolled     = New("AlreadyEnrolled", http.StatusConflict, "already enrolled in this course")
	ErrNotEnrolled         = New("NotEnrolled", http.StatusUnprocessableEntity, "not enrolled in this course")
)

var rejectionCodes = map[string]struct{}{
	ErrStudentInactive.Code:     {},
	ErrWindowClosed.Code:        {},
	ErrOfferingNotOpen.Code:     {},
	ErrDepartmentMismatch.Code:  {},
	ErrCapacityFull.Code:        {},
	ErrCreditLimitExceeded.Code: {},
	ErrAlreadyEnrolled.Code:     {},
	ErrNotEnrolled.Code:         {},
	ErrNotFound.Code:            {},
}

// IsRejection reports whether err carries one of the user-facing enrollment reason codes.
func IsRejection(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	_, ok := rejectionCodes[e.Code]
	return ok
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
