// Package handler provides HTTP handlers for the chat service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/internal/chat/biz"
	"github.com/kart-io/codequery/pkg/errors"
	"github.com/kart-io/codequery/pkg/utils/json"
)

// ChatHandler handles chat HTTP requests.
type ChatHandler struct {
	service biz.Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service biz.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the standard error envelope. Code is the stable
// machine-readable reason, Message the human-readable text.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Ask answers one question without streaming.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req biz.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    errors.ErrInvalidParam.Reason,
			Message: err.Error(),
		})
		return
	}

	resp, err := h.service.Ask(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: resp})
}

// AskStream answers one question as a server-sent event stream. Each event
// is one JSON object on a data: line; the stream ends with a done or error
// event.
func (h *ChatHandler) AskStream(c *gin.Context) {
	var req biz.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    errors.ErrInvalidParam.Reason,
			Message: err.Error(),
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// Disable proxy buffering so fragments reach the client immediately.
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for event := range h.service.AskStream(ctx, &req) {
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Errorw("failed to marshal stream event", "type", event.Type, "error", err.Error())
			return
		}
		if _, err := c.Writer.WriteString("data: " + string(payload) + "\n\n"); err != nil {
			// Client went away; the service notices through ctx.
			return
		}
		c.Writer.Flush()
	}
}

// Stats returns cache and pipeline counters.
func (h *ChatHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// Healthz reports process liveness.
func (h *ChatHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps an error onto its registered HTTP status and stable code.
func (h *ChatHandler) writeError(c *gin.Context, err error) {
	errno := errors.FromError(err)
	c.JSON(errno.HTTPStatus(), ErrorResponse{
		Code:    errno.Reason,
		Message: errno.Message,
	})
}
