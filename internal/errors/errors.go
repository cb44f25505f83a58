package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a lifegrid error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrSetupRequired    ErrorCode = "SETUP_REQUIRED"    // 409
	ErrFileTooLarge     ErrorCode = "FILE_TOO_LARGE"    // 413
	ErrMalformedImport  ErrorCode = "MALFORMED_IMPORT"  // 422
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE" // 503
)

// GridError represents a structured error with code, status, and details.
type GridError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *GridError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GridError {
	return &GridError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing stored record.
func NewNotFound(id string) *GridError {
	return &GridError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *GridError {
	return &GridError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewSetupRequired creates a 409 error for operations that need a completed profile.
func NewSetupRequired() *GridError {
	return &GridError{
		Code:    ErrSetupRequired,
		Status:  409,
		Message: "profile setup has not been completed; run setup first",
	}
}

// NewFileTooLarge creates a 413 error when an import file exceeds the size limit.
func NewFileTooLarge(max, actual int64) *GridError {
	return &GridError{
		Code:    ErrFileTooLarge,
		Status:  413,
		Message: fmt.Sprintf("file exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewMalformedImport creates a 422 error for import payloads that cannot be parsed.
func NewMalformedImport(err error) *GridError {
	msg := "import payload is not a valid document"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &GridError{
		Code:    ErrMalformedImport,
		Status:  422,
		Message: msg,
	}
}

// NewCancelled creates a 499 error when an operation's context is cancelled.
func NewCancelled(op string) *GridError {
	return &GridError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewStoreUnavailable creates a 503 error when the document could not be persisted.
func NewStoreUnavailable(err error) *GridError {
	details := map[string]any{}
	if err != nil {
		details["store_error"] = err.Error()
	}
	return &GridError{
		Code:    ErrStoreUnavailable,
		Status:  503,
		Message: "failed to persist data",
		Details: details,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The underlying error is kept in Details for logging, not in Message.
func NewInternal(err error) *GridError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &GridError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or anything it wraps) is a GridError with the given code.
func Is(err error, code ErrorCode) bool {
	var gErr *GridError
	if stderrors.As(err, &gErr) {
		return gErr.Code == code
	}
	return false
}

// As unwraps err into a GridError, wrapping unknown errors as INTERNAL.
func As(err error) *GridError {
	var gErr *GridError
	if stderrors.As(err, &gErr) {
		return gErr
	}
	return NewInternal(err)
}
