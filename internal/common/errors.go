package common

import (
	"errors"
	"net/http"
)

// Error codes used across handlers.
const (
	CodeValidation = "VALIDATION"
	CodeNotFound   = "NOT_FOUND"
	CodeSigning    = "SIGNING"
	CodeUpstream   = "UPSTREAM"
	CodeInternal   = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports missing or malformed request input (HTTP 400).
func Validation(message string, err error) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, err)
}

// NotFound reports a lookup that yielded no match (HTTP 404).
func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, nil)
}

// Signing reports a failure in the canonicalisation or MAC step (HTTP 500).
func Signing(err error) *AppError {
	return NewAppError(CodeSigning, "Internal server error", http.StatusInternalServerError, err)
}

// Upstream reports a non-2xx response from the remote payment API. The upstream
// status is kept so it can be passed through to the caller.
func Upstream(status int, message string, details any) *AppError {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return &AppError{Code: CodeUpstream, Message: message, HTTPStatus: status, Details: details}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// WriteError renders err using its AppError status when present, falling back to 500.
// Not-found errors also echo the status in the code field.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		message := appErr.Message
		if message == "" {
			message = appErr.Error()
		}
		body := ErrorBody{Error: message, Details: appErr.Details}
		if appErr.Code == CodeNotFound {
			body.Code = appErr.HTTPStatus
		}
		JSON(w, appErr.HTTPStatus, body)
		return
	}
	JSONError(w, http.StatusInternalServerError, "Internal server error", nil)
}
