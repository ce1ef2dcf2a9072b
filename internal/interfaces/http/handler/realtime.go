package handler

import (
	"time"

	"github.com/flowstate/agency/internal/application/realtime"
	domainrt "github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/infrastructure/logger"
	"github.com/flowstate/agency/internal/infrastructure/websocket"
	"github.com/flowstate/agency/internal/interfaces/http/dto"
	"github.com/flowstate/agency/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RealtimeHandler accepts invalidation events from the data layer and streams them to browsers
type RealtimeHandler struct {
	BaseHandler
	ingest *realtime.IngestService
	hub    *websocket.Hub
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(ingest *realtime.IngestService, hub *websocket.Hub) *RealtimeHandler {
	return &RealtimeHandler{ingest: ingest, hub: hub}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *RealtimeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rt := rg.Group("/realtime")
	rt.POST("/events", h.IngestEvent)
	rt.GET("/ws", h.ServeWebSocket)
	rt.GET("/stream", h.ServeStream)
}

// IngestEvent godoc
//
//	@Summary		Publish an invalidation event for the organization
//	@Description	A repeated event_id is acknowledged without being published again
//	@Tags			realtime
//	@Accept			json
//	@Produce		json
//	@Param			request	body	dto.InvalidationEventRequest	true	"Event"
//	@Success		202
//	@Router			/realtime/events [post]
func (h *RealtimeHandler) IngestEvent(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req dto.InvalidationEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	evt := domainrt.InvalidationEvent{
		EventID:        uuid.New(),
		Name:           domainrt.EventName(req.Event),
		ID:             req.ID,
		OrganizationID: orgID,
		OccurredAt:     time.Now().UTC(),
	}
	if req.EventID != "" {
		evt.EventID = uuid.MustParse(req.EventID)
	}

	result, err := h.ingest.Ingest(c.Request.Context(), evt)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, result)
}

// ServeWebSocket godoc
//
//	@Summary	Subscribe to the organization's invalidation events over WebSocket
//	@Tags		realtime
//	@Router		/realtime/ws [get]
func (h *RealtimeHandler) ServeWebSocket(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	if err := h.hub.ServeWS(c.Writer, c.Request, orgID); err != nil {
		logger.L(c.Request.Context()).Debug("WebSocket subscription refused", zap.Error(err))
	}
}

// ServeStream godoc
//
//	@Summary	Subscribe to the organization's invalidation events as Server-Sent Events
//	@Tags		realtime
//	@Produce	text/event-stream
//	@Router		/realtime/stream [get]
func (h *RealtimeHandler) ServeStream(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	if err := h.hub.ServeSSE(c.Writer, c.Request, orgID); err != nil {
		logger.L(c.Request.Context()).Warn("SSE subscription failed", zap.Error(err))
	}
}
