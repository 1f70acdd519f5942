package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kaskelas/backend/internal/repository"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidState   = errors.New("invalid state")
	ErrInvalidAccount = errors.New("invalid payment account")
	ErrValidation     = errors.New("validation failed")
	ErrMissingReason  = errors.New("missing reason")
	ErrConflict       = errors.New("conflict")
	ErrInfrastructure = errors.New("infrastructure failure")
)

type ErrorCode string

const (
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeInvalidState   ErrorCode = "INVALID_STATE"
	CodeInvalidAccount ErrorCode = "INVALID_ACCOUNT"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeMissingReason  ErrorCode = "MISSING_REASON"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeInfrastructure ErrorCode = "INFRASTRUCTURE_ERROR"

	// CodeUnauthorized is only produced at the HTTP edge.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

var kindCodes = map[error]ErrorCode{
	ErrNotFound:       CodeNotFound,
	ErrForbidden:      CodeForbidden,
	ErrInvalidState:   CodeInvalidState,
	ErrInvalidAccount: CodeInvalidAccount,
	ErrValidation:     CodeValidation,
	ErrMissingReason:  CodeMissingReason,
	ErrConflict:       CodeConflict,
	ErrInfrastructure: CodeInfrastructure,
}

// Error is the typed failure every service operation returns.
type Error struct {
	Kind    error
	Message string
	// State is the entity's current status for InvalidState errors.
	State   string
	Details map[string]string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.State != "" {
		msg = fmt.Sprintf("%s (current state: %s)", msg, e.State)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func (e *Error) Code() ErrorCode {
	if code, ok := kindCodes[e.Kind]; ok {
		return code
	}
	return CodeInfrastructure
}

// HTTPStatus maps the error kind onto a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidState, ErrConflict:
		return http.StatusConflict
	case ErrInvalidAccount:
		return http.StatusUnprocessableEntity
	case ErrValidation, ErrMissingReason:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func notFoundError(entity, id string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func forbiddenError(message string) *Error {
	return &Error{Kind: ErrForbidden, Message: message}
}

func invalidStateError[S ~string](message string, current S) *Error {
	return &Error{Kind: ErrInvalidState, Message: message, State: string(current)}
}

func validationError(field, message string) *Error {
	e := &Error{Kind: ErrValidation, Message: message}
	if field != "" {
		e.Details = map[string]string{field: message}
	}
	return e
}

// storeError translates repository failures at the service boundary.
func storeError(entity, id string, err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFoundError(entity, id)
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: ErrConflict, Message: fmt.Sprintf("%s %s already exists", entity, id), Cause: err}
	default:
		return &Error{Kind: ErrInfrastructure, Message: fmt.Sprintf("storage failure on %s", entity), Cause: err}
	}
}

// AsError extracts a service Error, wrapping anything else as an infrastructure failure.
func AsError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &Error{Kind: ErrInfrastructure, Message: "internal error", Cause: err}
}
