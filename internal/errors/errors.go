package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure of the digitizing pipeline
type Kind string

const (
	KindInvalidInput      Kind = "InvalidInput"
	KindUnsupportedEngine Kind = "UnsupportedEngine"
	KindMissingCredential Kind = "MissingCredential"
	KindEngineFailure     Kind = "EngineFailure"
	KindRemoteFailure     Kind = "RemoteFailure"
	KindInternal          Kind = "InternalError"
)

// AppError represents a structured application error
type AppError struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Cause      error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, status int, message string, cause error) *AppError {
	return &AppError{
		Kind:       kind,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewInvalidInputError reports a malformed or missing image or text
func NewInvalidInputError(message string, cause error) *AppError {
	return newError(KindInvalidInput, http.StatusBadRequest, message, cause)
}

// NewUnsupportedEngineError reports an unknown engine selection
func NewUnsupportedEngineError(message string, cause error) *AppError {
	return newError(KindUnsupportedEngine, http.StatusBadRequest, message, cause)
}

// NewMissingCredentialError reports that a required secret is absent
func NewMissingCredentialError(message string, cause error) *AppError {
	return newError(KindMissingCredential, http.StatusBadRequest, message, cause)
}

// NewEngineFailureError reports an internal error of the local engine
func NewEngineFailureError(message string, cause error) *AppError {
	return newError(KindEngineFailure, http.StatusUnprocessableEntity, message, cause)
}

// NewRemoteFailureError reports a network or model-side error
func NewRemoteFailureError(message string, cause error) *AppError {
	return newError(KindRemoteFailure, http.StatusBadGateway, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(KindInternal, http.StatusInternalServerError, message, cause)
}

// New builds an AppError for an arbitrary kind, used when a kind is passed through
func New(kind Kind, message string, cause error) *AppError {
	return newError(kind, StatusCodeFor(kind), message, cause)
}

// StatusCodeFor maps a kind to its HTTP status
func StatusCodeFor(kind Kind) int {
	switch kind {
	case KindInvalidInput, KindUnsupportedEngine, KindMissingCredential:
		return http.StatusBadRequest
	case KindEngineFailure:
		return http.StatusUnprocessableEntity
	case KindRemoteFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// As returns the AppError in err's chain, if any
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf extracts the kind of an error; unknown errors are internal
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message without the kind prefix
func MessageOf(err error) string {
	if appErr, ok := As(err); ok {
		if appErr.Cause != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
		}
		return appErr.Message
	}
	return err.Error()
}

// IsKind checks if the error is of a specific kind
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
