package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	State   string            `json:"state,omitempty"`   // Current entity status
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

type SuccessResponse struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, limit, total int) *Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &ValidationHelper{validator: v}
}

// ValidateStruct returns a ValidationError carrying one detail per failed field.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	err := vh.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Kind: ErrValidation, Message: "invalid request", Cause: err}
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", fe.Tag())
	}
	return &Error{Kind: ErrValidation, Message: "Validation failed", Details: details}
}

// SendErrorResponse writes err in the error envelope. Infrastructure causes are logged, not echoed.
func SendErrorResponse(w http.ResponseWriter, err error) {
	svcErr := AsError(err)
	if svcErr.Kind == ErrInfrastructure {
		slog.Error("request failed", "error", err)
	}
	writeError(w, svcErr.HTTPStatus(), ErrorBody{
		Code:    svcErr.Code(),
		Message: svcErr.Message,
		State:   svcErr.State,
		Details: svcErr.Details,
	})
}

// SendStatusError writes an error that has no service-level kind, such as 401.
func SendStatusError(w http.ResponseWriter, statusCode int, code ErrorCode, message string) {
	writeError(w, statusCode, ErrorBody{Code: code, Message: message})
}

func writeError(w http.ResponseWriter, statusCode int, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: body})
}

func SendSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	SendJSON(w, statusCode, SuccessResponse{Success: true, Data: data, Message: message})
}

func SendPage(w http.ResponseWriter, data any, p *Pagination) {
	SendJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: data, Pagination: p})
}

func SendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
