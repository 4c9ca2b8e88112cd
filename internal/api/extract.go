package api

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"

	"github.com/tmdgusya/crawl-selector/internal/extract"
	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/messaging"
	"github.com/tmdgusya/crawl-selector/internal/metrics"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

type extractHandler struct {
	client  *messaging.Client
	metrics *metrics.Metrics
	log     logger.Logger
}

type extractFieldRequest struct {
	// HTML is extracted from directly; when empty the live page is used.
	HTML  string               `json:"html"`
	Field recipe.SelectorField `json:"field"`
}

type extractFieldsRequest struct {
	HTML   string                 `json:"html"`
	Fields []recipe.SelectorField `json:"fields"`
}

type fetchRequest struct {
	URL    string                 `json:"url" binding:"required"`
	Fields []recipe.SelectorField `json:"fields"`
}

func (h *extractHandler) Field(c *gin.Context) {
	var req extractFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.HTML == "" {
		c.JSON(http.StatusOK, messaging.ExtractFieldResponse{Result: h.client.ExtractField(c.Request.Context(), req.Field)})
		return
	}

	root, err := parseHTML(req.HTML)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid HTML", err)
		return
	}
	res := extract.Extract(req.Field, root)
	h.metrics.ObserveExtraction(res.Success)
	c.JSON(http.StatusOK, messaging.ExtractFieldResponse{Result: res})
}

func (h *extractHandler) Fields(c *gin.Context) {
	var req extractFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.HTML == "" {
		c.JSON(http.StatusOK, messaging.ExtractAllFieldsResponse{Results: h.client.ExtractAllFields(c.Request.Context(), req.Fields)})
		return
	}

	root, err := parseHTML(req.HTML)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid HTML", err)
		return
	}
	results := extract.ExtractAll(req.Fields, root)
	for _, r := range results {
		h.metrics.ObserveExtraction(r.Success)
	}
	c.JSON(http.StatusOK, messaging.ExtractAllFieldsResponse{Results: results})
}

func (h *extractHandler) Fetch(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp := h.client.FetchAndExtract(c.Request.Context(), req.URL, req.Fields)
	if resp.Error != "" {
		logger.FromContext(c.Request.Context()).Info("Fetch and extract failed",
			logger.String("url", req.URL),
			logger.String("error", resp.Error),
		)
	}
	c.JSON(http.StatusOK, resp)
}

func parseHTML(markup string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return doc.Selection, nil
}
