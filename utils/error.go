package utils

import (
	"errors"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// ErrorKind classifies every error surfaced to callers. HTTP mapping is in
// HTTPStatus; workflows pick the kind, handlers pick nothing.
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "ValidationError"
	ErrorKindNotFound      ErrorKind = "NotFound"
	ErrorKindConflict      ErrorKind = "ConflictError"
	ErrorKindBusinessLogic ErrorKind = "BusinessLogicError"
	ErrorKindIntegrity     ErrorKind = "IntegrityError"
	ErrorKindConfig        ErrorKind = "ConfigError"
	ErrorKindTemporary     ErrorKind = "TemporaryError"
)

// AppError is the one error type crossing the workflow/handler boundary.
// Detail carries a machine-readable pointer to the offending entity (usually
// a uuid) when one is available.
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return e.Message + " (" + e.Detail + ")"
	}
	return e.Message
}

func NewAppError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func NewAppErrorWithDetail(kind ErrorKind, message string, detail string) *AppError {
	return &AppError{Kind: kind, Message: message, Detail: detail}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: ErrorKindValidation, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: ErrorKindNotFound, Message: message}
}

func NewConflictError(message string, detail string) *AppError {
	return &AppError{Kind: ErrorKindConflict, Message: message, Detail: detail}
}

func NewBusinessLogicError(message string, detail string) *AppError {
	return &AppError{Kind: ErrorKindBusinessLogic, Message: message, Detail: detail}
}

func NewIntegrityError(message string, detail string) *AppError {
	return &AppError{Kind: ErrorKindIntegrity, Message: message, Detail: detail}
}

func NewConfigError(message string) *AppError {
	return &AppError{Kind: ErrorKindConfig, Message: message}
}

func NewTemporaryError(message string) *AppError {
	return &AppError{Kind: ErrorKindTemporary, Message: message}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps an error to its response status. Unknown errors and raw
// RecordNotFound are normalized here so handlers never switch on kinds.
func HTTPStatus(err error) int {
	if errors.Is(err, ErrorRecordNotFound) {
		return http.StatusNotFound
	}
	appErr, ok := AsAppError(err)
	if !ok {
		return http.StatusBadRequest
	}
	switch appErr.Kind {
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindConflict, ErrorKindBusinessLogic:
		return http.StatusConflict
	case ErrorKindIntegrity, ErrorKindConfig:
		return http.StatusUnprocessableEntity
	case ErrorKindTemporary:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
