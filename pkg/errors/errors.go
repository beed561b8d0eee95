package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a more specific message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Is reports whether target shares this error's classification code, so that
// errors.Is(err, ErrNotFound) matches derived copies built via WithMessage.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// Repository error classifications. Every error surfaced by the repository core
// is one of these five; backend failures are always wrapped as ErrDatastore.
var (
	// ErrInvalidModel indicates caller-supplied data failed validation before
	// any persistence was attempted.
	ErrInvalidModel = &AppError{
		Code:       "INVALID_MODEL",
		Message:    "Invalid model",
		StatusCode: http.StatusBadRequest,
	}

	// ErrNotFound indicates no record exists for the given identifier.
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	// ErrUnauthorized indicates the record exists but the caller lacks the
	// required access grant.
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Permission denied",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrConflict indicates a concurrent modification detected through the
	// etag optimistic-concurrency token.
	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Resource was modified concurrently",
		StatusCode: http.StatusConflict,
	}

	// ErrDatastore wraps any lower-level persistence failure so callers never
	// depend on backend-specific error types.
	ErrDatastore = &AppError{
		Code:       "DATASTORE_ERROR",
		Message:    "Datastore operation failed",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewInvalidModel builds an InvalidModel error with a field-specific message.
func NewInvalidModel(message string) *AppError {
	return ErrInvalidModel.WithMessage(message)
}

// Datastore wraps a backend error while keeping the original for logging.
// Existing AppError classifications pass through untouched.
func Datastore(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrDatastore.WithInternal(err)
}

// FromError converts a generic error into an AppError, defaulting to ErrDatastore.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrDatastore.WithInternal(err)
}
