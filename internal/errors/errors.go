package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a palmscan error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"  // 401
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"   // 404
	ErrAlreadyExists   ErrorCode = "ALREADY_EXISTS"   // 409
	ErrCancelled       ErrorCode = "CANCELLED"        // 499
	ErrInternal        ErrorCode = "INTERNAL"         // 500
	ErrUpstream        ErrorCode = "UPSTREAM_ERROR"   // 502
)

// FortuneError represents a structured error with code, status, and details.
type FortuneError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *FortuneError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *FortuneError {
	return &FortuneError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthenticated creates a 401 error when no bearer token is available.
func NewUnauthenticated(msg string) *FortuneError {
	return &FortuneError{
		Code:    ErrUnauthenticated,
		Status:  401,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing fortune.
func NewNotFound(userID, id string) *FortuneError {
	return &FortuneError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("fortune not found: %s/%s", userID, id),
		Details: map[string]any{"user_id": userID, "id": id},
	}
}

// NewScanNotFound creates a 404 error for a missing scan.
func NewScanNotFound(id string) *FortuneError {
	return &FortuneError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("scan not found: %s", id),
		Details: map[string]any{"scan_id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import or image file.
func NewFileNotFound(path string) *FortuneError {
	return &FortuneError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewAlreadyExists creates a 409 error when a fortune id is taken.
func NewAlreadyExists(userID, id string) *FortuneError {
	return &FortuneError{
		Code:    ErrAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("fortune %q already exists for user %q", id, userID),
		Details: map[string]any{"user_id": userID, "id": id},
	}
}

// NewCancelled creates a 499 error when the caller gave up.
func NewCancelled(err error) *FortuneError {
	msg := "request cancelled"
	if err != nil {
		msg = err.Error()
	}
	return &FortuneError{
		Code:    ErrCancelled,
		Status:  499,
		Message: msg,
	}
}

// NewUpstream creates a 502 error for a failed call to a remote service.
func NewUpstream(service string, status int, msg string) *FortuneError {
	return &FortuneError{
		Code:    ErrUpstream,
		Status:  502,
		Message: fmt.Sprintf("%s: %s", service, msg),
		Details: map[string]any{"service": service, "upstream_status": status},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *FortuneError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &FortuneError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Wrap converts an arbitrary error to a FortuneError. Context cancellation maps
// to CANCELLED, existing FortuneErrors pass through, everything else is INTERNAL.
func Wrap(err error) *FortuneError {
	if err == nil {
		return nil
	}
	var fe *FortuneError
	if stderrors.As(err, &fe) {
		return fe
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewCancelled(err)
	}
	return NewInternal(err)
}

// Is checks if an error is a FortuneError with the given code.
func Is(err error, code ErrorCode) bool {
	var fe *FortuneError
	if stderrors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
