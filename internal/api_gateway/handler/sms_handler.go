package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/go-exchange-reconciler/internal/api_gateway/middleware"
	"github.com/go-exchange-reconciler/internal/api_gateway/service"
)

// InboundAck is the body returned to the SMS gateway for every accepted callback
const InboundAck = "SMS Notification received"

// SMSHandler receives the SMS gateway's incoming message callbacks
type SMSHandler struct {
	replyService service.ReplyService
	logger       *slog.Logger
}

func NewSMSHandler(logger *slog.Logger, replyService service.ReplyService) *SMSHandler {
	return &SMSHandler{
		replyService: replyService,
		logger:       logger,
	}
}

// Inbound acknowledges the callback once the reply has been handled. Replies that
// concern nothing are still acknowledged so the gateway does not redeliver them.
func (h *SMSHandler) Inbound(c *gin.Context) {
	var req InboundSMSRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Invalid inbound SMS callback", "error", err)
		RespondBadRequest(c, "Invalid inbound SMS: "+err.Error())
		return
	}

	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c), "link_id", req.LinkID)
	err := h.replyService.HandleInbound(c.Request.Context(), service.InboundSMS{
		LinkID: req.LinkID,
		Text:   req.Text,
		From:   req.From,
		To:     req.To,
		Date:   req.Date,
	})
	if err != nil {
		logger.Error("Failed to handle inbound SMS", "error", err)
		RespondInternalError(c)
		return
	}

	c.String(http.StatusOK, InboundAck)
}
