// Package handler implements the HTTP endpoints of the agency API.
package handler

import (
	"errors"
	"net/http"

	"github.com/flowstate/agency/internal/domain/shared"
	"github.com/flowstate/agency/internal/infrastructure/logger"
	"github.com/flowstate/agency/internal/interfaces/http/dto"
	"github.com/flowstate/agency/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler holds the response envelope helpers shared by every handler
type BaseHandler struct{}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithWarning answers 200 with a notice the client should surface
func (h *BaseHandler) SuccessWithWarning(c *gin.Context, data any, warning string) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithWarning(data, warning))
}

func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error writes the error envelope tagged with the request id
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// HandleError maps err onto the error envelope. Domain errors keep their code;
// anything else becomes a generic 500. Server-side failures are logged.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	status, code, message := http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status, code, message = dto.GetHTTPStatus(domainErr.Code), domainErr.Code, domainErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("Request failed", zap.String("code", code), zap.Error(err))
	}
	h.Error(c, status, code, message)
}

// organizationID answers 400 and returns false when the route runs without middleware.Organization
func (h *BaseHandler) organizationID(c *gin.Context) (uuid.UUID, bool) {
	if id, ok := middleware.GetOrganizationID(c); ok {
		return id, true
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeMissingOrganization, "No organization context found")
	return uuid.Nil, false
}
