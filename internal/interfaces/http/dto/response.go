// Package dto holds the wire envelope and request shapes of the HTTP API.
package dto

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Warning string     `json:"warning,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewSuccessResponseWithWarning creates a success response that carries a user-facing notice
func NewSuccessResponseWithWarning(data any, warning string) Response {
	return Response{
		Success: true,
		Data:    data,
		Warning: warning,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithRequestID creates an error response tagged with the request id
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	resp := NewErrorResponse(code, message)
	resp.Error.RequestID = requestID
	return resp
}

// NewValidationErrorResponse creates a 400 body listing the rejected fields
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	return NewValidationErrorResponseWithCode(ErrCodeValidation, message, requestID, details)
}

// NewValidationErrorResponseWithCode is NewValidationErrorResponse with a more specific code
func NewValidationErrorResponseWithCode(code, message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(code, message, requestID)
	resp.Error.Details = details
	return resp
}

// SetPlanRequest is the body of PUT /subscription/plan
type SetPlanRequest struct {
	Plan string `json:"plan" binding:"required,plan"`
}

// ResourceKindRequest binds the :kind path parameter
type ResourceKindRequest struct {
	Kind string `uri:"kind" binding:"required,resource_kind"`
}

// FeatureRequest binds the :feature path parameter
type FeatureRequest struct {
	Feature string `uri:"feature" binding:"required"`
}

// GateQuery customizes the upgrade prompt of GET /subscription/gate/:feature
type GateQuery struct {
	Message  string   `form:"message" binding:"max=500"`
	Benefits []string `form:"benefit" binding:"max=20,dive,max=200"`
}

// InvalidationEventRequest is the body of POST /realtime/events
type InvalidationEventRequest struct {
	EventID string `json:"event_id" binding:"omitempty,uuid"`
	Event   string `json:"event" binding:"required"`
	ID      string `json:"id" binding:"max=200"`
}
