package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal   = "INTERNAL"
	ErrCodeValidation = "VALIDATION"
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeMissingOrganization is used when the tenant header is absent or malformed
	ErrCodeMissingOrganization = "MISSING_ORGANIZATION"
	ErrCodeRequestTooLarge     = "REQUEST_TOO_LARGE"
)

// Domain error codes surfaced by the API
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	ErrCodeInvalidPlan         = "INVALID_PLAN"
	ErrCodeUnknownResourceKind = "UNKNOWN_RESOURCE_KIND"
	ErrCodeFeatureNotAvailable = "FEATURE_NOT_AVAILABLE"
	ErrCodeLimitReached        = "LIMIT_REACHED"
	ErrCodeUnknownEvent        = "UNKNOWN_EVENT"
	ErrCodeListenerClosed      = "LISTENER_CLOSED"
	ErrCodeEventDropped        = "EVENT_DROPPED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeMissingOrganization: http.StatusBadRequest,
	ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeStorageUnavailable:  http.StatusServiceUnavailable,
	ErrCodeInvalidPlan:         http.StatusBadRequest,
	ErrCodeUnknownResourceKind: http.StatusBadRequest,
	ErrCodeFeatureNotAvailable: http.StatusForbidden,
	ErrCodeLimitReached:        http.StatusForbidden,
	ErrCodeUnknownEvent:        http.StatusBadRequest,
	ErrCodeListenerClosed:      http.StatusServiceUnavailable,
	ErrCodeEventDropped:        http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
