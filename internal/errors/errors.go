package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Request error codes, reported in the error_code extension
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// APIError is a request that failed before alignment ran: an unreadable
// body, an unknown route or an unknown feed.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ProblemType returns the problem type URI for the error code
func (e *APIError) ProblemType() string {
	switch e.ErrorCode {
	case CodeInvalidRequest, CodeInvalidJSON, CodeValidationFailed, CodePayloadTooLarge:
		return TypeValidation
	case CodeNotFound:
		return TypeNotFound
	case CodeMethodNotAllowed:
		return TypeMethodNotAllowed
	default:
		return TypeInternal
	}
}

// FieldError is one request field that failed validation
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is the details payload of a VALIDATION_FAILED error
type FieldErrors struct {
	Errors []FieldError `json:"errors"`
}

// MissingBody reports an empty request body
func MissingBody() *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: CodeInvalidRequest, Message: "Request body is required"}
}

// InvalidJSON reports a body that does not decode into the request type
func InvalidJSON(err error) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  CodeInvalidJSON,
		Message:    "Request body contains invalid JSON",
		Details:    err.Error(),
	}
}

// PayloadTooLarge reports a body over limit bytes
func PayloadTooLarge(limit int64) *APIError {
	return &APIError{
		StatusCode: http.StatusRequestEntityTooLarge,
		ErrorCode:  CodePayloadTooLarge,
		Message:    "Request body exceeds maximum allowed size",
		Details:    map[string]int64{"max_size": limit},
	}
}

// InvalidRequest wraps a request that could not be validated at all
func InvalidRequest(err error) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  CodeInvalidRequest,
		Message:    "Invalid request format",
		Details:    err.Error(),
	}
}

// ValidationFailed lists the fields that failed struct validation
func ValidationFailed(fields []FieldError) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  CodeValidationFailed,
		Message:    "Request validation failed",
		Details:    FieldErrors{Errors: fields},
	}
}

// NotFound reports an unknown resource such as a feed name
func NotFound(resource string) *APIError {
	return &APIError{
		StatusCode: http.StatusNotFound,
		ErrorCode:  CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Details:    resource,
	}
}

// MethodNotAllowed reports a route that exists under another method
func MethodNotAllowed(method, path string) *APIError {
	return &APIError{
		StatusCode: http.StatusMethodNotAllowed,
		ErrorCode:  CodeMethodNotAllowed,
		Message:    fmt.Sprintf("%s is not allowed on %s", method, path),
	}
}
