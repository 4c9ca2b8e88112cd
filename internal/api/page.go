package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tmdgusya/crawl-selector/internal/css"
	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/picker"
)

type pageHandler struct {
	host *picker.Host
	log  logger.Logger
}

type loadPageRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html" binding:"required"`
}

type targetRequest struct {
	Target string `json:"target" binding:"required"`
}

type keyRequest struct {
	Key string `json:"key" binding:"required"`
}

// Load makes html the live page.
func (h *pageHandler) Load(c *gin.Context) {
	var req loadPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := h.host.Load(req.URL, strings.NewReader(req.HTML)); err != nil {
		respondError(c, http.StatusBadRequest, "Failed to load page", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": req.URL})
}

// State reports the picker state and the visible tooltip, if any.
func (h *pageHandler) State(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	state, err := s.State(ctx)
	if err != nil {
		respondPageError(c, err)
		return
	}
	body := gin.H{"url": s.URL, "state": state.String()}
	if tip, visible, tipErr := s.Tooltip(ctx); tipErr == nil && visible {
		body["tooltip"] = tip
	}
	c.JSON(http.StatusOK, body)
}

func (h *pageHandler) Hover(c *gin.Context) {
	h.onTarget(c, func(s *picker.Session, target string) error {
		return s.Hover(c.Request.Context(), target)
	})
}

func (h *pageHandler) Click(c *gin.Context) {
	h.onTarget(c, func(s *picker.Session, target string) error {
		return s.Click(c.Request.Context(), target)
	})
}

func (h *pageHandler) Key(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.KeyDown(c.Request.Context(), req.Key); err != nil {
		respondPageError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *pageHandler) onTarget(c *gin.Context, fn func(*picker.Session, string) error) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(s, req.Target); err != nil {
		respondPageError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *pageHandler) session(c *gin.Context) (*picker.Session, bool) {
	s, err := h.host.Current()
	if err != nil {
		respondPageError(c, err)
		return nil, false
	}
	return s, true
}

func respondPageError(c *gin.Context, err error) {
	var syntaxErr *css.SyntaxError
	switch {
	case errors.Is(err, picker.ErrNoPage):
		respondError(c, http.StatusConflict, "No page loaded", err)
	case errors.Is(err, picker.ErrNoElement):
		respondError(c, http.StatusNotFound, "Target matched no elements", err)
	case errors.As(err, &syntaxErr):
		respondError(c, http.StatusBadRequest, "Invalid target selector", err)
	case errors.Is(err, picker.ErrLoopStopped):
		respondError(c, http.StatusServiceUnavailable, "Page is closing", err)
	default:
		respondError(c, http.StatusInternalServerError, "Page operation failed", err)
	}
}
