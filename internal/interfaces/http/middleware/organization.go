package middleware

import (
	"net/http"

	"github.com/flowstate/agency/internal/infrastructure/logger"
	"github.com/flowstate/agency/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrganizationHeader carries the tenant resolved by the upstream authentication layer
const (
	OrganizationHeader = "X-Organization-ID"
	OrganizationKey    = "organization_id"
)

// Organization requires a valid organization id on every request of the group.
// Browsers cannot set headers on EventSource or WebSocket handshakes, so the
// "organization_id" query parameter is accepted as a fallback.
func Organization() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(OrganizationHeader)
		if raw == "" {
			raw = c.Query(OrganizationKey)
		}
		orgID, err := uuid.Parse(raw)
		if err != nil || orgID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeMissingOrganization,
				OrganizationHeader+" header must be a valid organization id",
				GetRequestID(c),
			))
			return
		}

		c.Set(OrganizationKey, orgID.String())
		c.Request = c.Request.WithContext(logger.WithOrganizationID(c.Request.Context(), orgID.String()))
		c.Next()
	}
}

// GetOrganizationID returns the organization set by Organization
func GetOrganizationID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(OrganizationKey)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
