package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/messaging"
)

type messageHandler struct {
	bus *messaging.Bus
	log logger.Logger
}

// Post puts an envelope on the bus. Requests answer with the response
// envelope; notifications are acknowledged once queued.
func (h *messageHandler) Post(c *gin.Context) {
	var env messaging.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !env.Origin.Valid() {
		respondError(c, http.StatusBadRequest, "Invalid envelope", messaging.ErrUnknownOrigin)
		return
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}

	if env.Kind.IsRequest() && !env.IsReply() {
		resp, err := h.bus.Request(c.Request.Context(), env)
		if err != nil {
			respondBusError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	if err := h.bus.Send(c.Request.Context(), env); err != nil {
		respondBusError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": env.ID, "queued": true})
}

// command sends a payload-less notification of kind from the panel.
func (h *messageHandler) command(kind messaging.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		env, err := messaging.New(messaging.OriginPanel, kind, nil)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to build message", err)
			return
		}
		if err = h.bus.Send(c.Request.Context(), env); err != nil {
			respondBusError(c, err)
			return
		}
		h.log.Debug("Picker command sent", logger.String("kind", string(kind)))
		c.JSON(http.StatusAccepted, gin.H{"id": env.ID, "queued": true})
	}
}

func respondBusError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, messaging.ErrUnknownKind),
		errors.Is(err, messaging.ErrUnknownOrigin),
		errors.Is(err, messaging.ErrMissingTarget),
		errors.Is(err, messaging.ErrLoopback):
		respondError(c, http.StatusBadRequest, "Message cannot be routed", err)
	case errors.Is(err, messaging.ErrNoReceiver):
		respondError(c, http.StatusServiceUnavailable, "Receiver not connected", err)
	case errors.Is(err, messaging.ErrQueueFull):
		respondError(c, http.StatusTooManyRequests, "Receiver is busy", err)
	case errors.Is(err, messaging.ErrTimeout):
		respondError(c, http.StatusGatewayTimeout, "Receiver did not respond", err)
	default:
		respondError(c, http.StatusInternalServerError, "Message delivery failed", err)
	}
}
