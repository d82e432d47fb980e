// Package apperrors provides standardized error handling for the log
// intelligence backend.
//
// It implements a consistent error format across all API endpoints:
//   - Structured error responses with machine-readable codes
//   - Automatic HTTP status code mapping
//   - Optional error details for debugging
//
// Usage patterns:
//
//	return apperrors.NotFound("log entry")
//	return apperrors.Storage(err)
//	apperrors.HandleError(c, err)
package apperrors

import (
	"fmt"
	"net/http"
)

// AppError is a standardized application error carrying its own HTTP status.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the JSON body returned to clients for a failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Closed error taxonomy (spec §7).
const (
	CodeAuthRequired            = "auth_required"
	CodeInvalidToken             = "invalid_token"
	CodeAuthenticationFailed     = "authentication_failed"
	CodeInsufficientPermissions  = "insufficient_permissions"
	CodeInsufficientRole         = "insufficient_role"
	CodeValidationFailed         = "validation_failed"
	CodeMissingFields            = "missing_fields"
	CodeInvalidJSON              = "invalid_json"
	CodeNotFound                 = "not_found"
	CodeDuplicateExternalID      = "duplicate_external_id"
	CodeRateLimitExceeded        = "rate_limit_exceeded"
	CodeStorageError             = "storage_error"
	CodeIndexError               = "index_error"
	CodeIngestUnavailable        = "ingest_unavailable"
	CodeSearchUnavailable        = "search_unavailable"
	CodePredictionPending        = "prediction_pending"
	CodeModelsUnavailable        = "models_unavailable"
	CodeAnalyzerFailed           = "analyzer_failed"
	CodeRequestTimeout           = "request_timeout"
	CodeInternalError            = "internal_error"
)

// New creates an AppError with the status code derived from its taxonomy code.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusForCode(code)}
}

// NewWithDetails creates an AppError carrying additional debugging context.
func NewWithDetails(code, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details, StatusCode: statusForCode(code)}
}

// Wrap adapts a lower-level error into an AppError, preserving its message as
// Details.
func Wrap(code, message string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewWithDetails(code, message, details)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidationFailed, CodeMissingFields, CodeInvalidJSON, CodeDuplicateExternalID:
		return http.StatusBadRequest
	case CodeAuthRequired, CodeInvalidToken, CodeAuthenticationFailed:
		return http.StatusUnauthorized
	case CodeInsufficientPermissions, CodeInsufficientRole:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodePredictionPending:
		return http.StatusAccepted
	case CodeRequestTimeout:
		return http.StatusRequestTimeout
	case CodeIngestUnavailable, CodeSearchUnavailable, CodeModelsUnavailable:
		return http.StatusServiceUnavailable
	case CodeStorageError, CodeIndexError, CodeAnalyzerFailed, CodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ToResponse converts an AppError into its wire representation.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Code, Message: e.Message, Code: e.Code, Details: e.Details}
}

// Convenience constructors, one per taxonomy entry actually used by handlers.

func AuthRequired() *AppError {
	return New(CodeAuthRequired, "authentication is required")
}

func InvalidToken() *AppError {
	return New(CodeInvalidToken, "authentication token is invalid or expired")
}

func AuthenticationFailed() *AppError {
	return New(CodeAuthenticationFailed, "invalid username or password")
}

func InsufficientPermissions(permission string) *AppError {
	return New(CodeInsufficientPermissions, fmt.Sprintf("missing required permission: %s", permission))
}

func InsufficientRole(role string) *AppError {
	return New(CodeInsufficientRole, fmt.Sprintf("requires role: %s", role))
}

func ValidationFailed(message string) *AppError {
	return New(CodeValidationFailed, message)
}

func MissingFields(fields ...string) *AppError {
	return NewWithDetails(CodeMissingFields, "one or more required fields are missing", fmt.Sprint(fields))
}

func InvalidJSON(err error) *AppError {
	return Wrap(CodeInvalidJSON, "request body is not valid JSON", err)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func DuplicateExternalID(externalID string) *AppError {
	return New(CodeDuplicateExternalID, fmt.Sprintf("external_id %q already exists", externalID))
}

func RateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "rate limit exceeded")
}

func Storage(err error) *AppError {
	return Wrap(CodeStorageError, "storage operation failed", err)
}

func Index(err error) *AppError {
	return Wrap(CodeIndexError, "index operation failed", err)
}

func IngestUnavailable(err error) *AppError {
	return Wrap(CodeIngestUnavailable, "ingestion is temporarily unavailable", err)
}

func SearchUnavailable(err error) *AppError {
	return Wrap(CodeSearchUnavailable, "search is temporarily unavailable", err)
}

func PredictionPending() *AppError {
	return New(CodePredictionPending, "prediction has not been computed yet")
}

func ModelsUnavailable(err error) *AppError {
	return Wrap(CodeModelsUnavailable, "ML models are not loaded", err)
}

func AnalyzerFailed(err error) *AppError {
	return Wrap(CodeAnalyzerFailed, "batch analysis run failed", err)
}

func RequestTimeout() *AppError {
	return New(CodeRequestTimeout, "request exceeded its time budget")
}

func Internal(message string) *AppError {
	return New(CodeInternalError, message)
}
