// Package errors provides the application error type shared by the engine,
// the request dispatcher and the HTTP surface.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	// Caller errors (4xx).
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUnsupportedLanguage = "UNSUPPORTED_LANGUAGE"

	// Engine and server errors (5xx).
	CodeInternal    = "INTERNAL_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
	CodeDisposed    = "DISPOSED"
	CodeBug         = "BUG"
	CodeQuery       = "QUERY_ERROR"
	CodeParse       = "PARSE_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// codeStatus lists the codes that are not 500s.
var codeStatus = map[string]int{
	CodeValidation:          http.StatusBadRequest,
	CodeInvalidRequest:      http.StatusBadRequest,
	CodeUnsupportedLanguage: http.StatusBadRequest,
	CodeNotFound:            http.StatusNotFound,
	CodeRateLimited:         http.StatusTooManyRequests,
	CodeUnavailable:         http.StatusServiceUnavailable,
	CodeTimeout:             http.StatusGatewayTimeout,
}

// HTTPStatus returns the HTTP status for e's code.
func (e *AppError) HTTPStatus() int {
	if status, ok := codeStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// InvalidRequestError creates an invalid request error.
func InvalidRequestError(message string) *AppError {
	return New(CodeInvalidRequest, message)
}

// UnsupportedLanguageError reports a language id outside the supported set.
func UnsupportedLanguageError(lang string) *AppError {
	return New(CodeUnsupportedLanguage, "unsupported language").WithDetail("language", lang)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// DisposedError reports use of a parse tree whose last reference is gone.
func DisposedError(message string) *AppError {
	return New(CodeDisposed, message)
}

// BugError reports a broken internal invariant.
func BugError(message string) *AppError {
	return New(CodeBug, message)
}

// QueryError wraps a query compilation or execution failure.
func QueryError(message string, err error) *AppError {
	return Wrap(CodeQuery, message, err)
}

// ParseError wraps a parser failure.
func ParseError(message string, err error) *AppError {
	return Wrap(CodeParse, message, err)
}

// RateLimitedError creates a rate limited error with retry information.
func RateLimitedError(retryAfterSeconds int) *AppError {
	err := New(CodeRateLimited, "rate limit exceeded")
	if retryAfterSeconds > 0 {
		err = err.WithDetail("retry_after", fmt.Sprintf("%d", retryAfterSeconds))
	}
	return err
}

// TimeoutError creates a timeout error for a specific operation.
func TimeoutError(operation string) *AppError {
	message := "operation timed out"
	if operation != "" {
		message = fmt.Sprintf("%s timed out", operation)
	}
	return New(CodeTimeout, message)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return New(CodeUnavailable, message)
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or
// CodeInternal for foreign errors. A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsDisposed checks if error reports use of a released tree.
func IsDisposed(err error) bool {
	return hasCode(err, CodeDisposed)
}

func hasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// ErrorResponse is the standard JSON error response structure.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON error response to the ResponseWriter.
func WriteJSON(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers already sent
	_ = json.NewEncoder(w).Encode(resp)
}

var opaqueInternal = ErrorResponse{
	Error:   "internal server error",
	Code:    CodeInternal,
	Message: "An unexpected error occurred",
}

func responseOf(e *AppError) ErrorResponse {
	return ErrorResponse{Error: e.Message, Code: e.Code, Message: e.Message, Details: e.Details}
}

// WriteError writes err with its own status. Errors that are not AppErrors
// are reported as an opaque internal error.
func WriteError(w http.ResponseWriter, err error) {
	if appErr, ok := As(err); ok {
		WriteJSON(w, appErr.HTTPStatus(), responseOf(appErr))
		return
	}
	WriteJSON(w, http.StatusInternalServerError, opaqueInternal)
}

// WriteErrorWithStatus writes err under status. The message of an error
// that is not an AppError is only shown for 4xx statuses.
func WriteErrorWithStatus(w http.ResponseWriter, status int, err error) {
	switch appErr, ok := As(err); {
	case ok:
		WriteJSON(w, status, responseOf(appErr))
	case status >= 400 && status < 500:
		WriteJSON(w, status, ErrorResponse{Error: err.Error(), Code: codeForStatus(status), Message: err.Error()})
	default:
		WriteJSON(w, status, opaqueInternal)
	}
}

// codeForStatus picks the code reported for a bare status.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidRequest
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	case http.StatusGatewayTimeout:
		return CodeTimeout
	}
	return CodeInternal
}
