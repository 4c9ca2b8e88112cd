package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tmdgusya/crawl-selector/internal/css"
	"github.com/tmdgusya/crawl-selector/internal/extract"
	"github.com/tmdgusya/crawl-selector/internal/selector"
)

const (
	maxSuggestTargets = 20
	suggestPreview    = 3
)

type suggestHandler struct {
	synth *selector.Synthesizer
}

type suggestRequest struct {
	HTML   string `json:"html" binding:"required"`
	Target string `json:"target" binding:"required"`
}

type rankedSelector struct {
	Selector   string   `json:"selector"`
	Tier       int      `json:"tier"`
	Reason     string   `json:"reason"`
	MatchCount int      `json:"matchCount"`
	Preview    []string `json:"preview"`
}

type suggestion struct {
	Best         string           `json:"best"`
	Alternatives []string         `json:"alternatives"`
	Ranked       []rankedSelector `json:"ranked"`
}

// Suggest synthesizes selectors for every element target matches in html.
func (h *suggestHandler) Suggest(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	root, err := parseHTML(req.HTML)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid HTML", err)
		return
	}
	targets, err := css.Find(root, req.Target)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid target selector", err)
		return
	}
	if targets.Length() == 0 {
		respondError(c, http.StatusNotFound, "Target matched no elements", nil)
		return
	}

	scorer := h.synth.Scorer()
	suggestions := make([]suggestion, 0, min(targets.Length(), maxSuggestTargets))
	for _, n := range targets.Nodes {
		if len(suggestions) == maxSuggestTargets {
			break
		}
		res := h.synth.Synthesize(n)
		ranked := make([]rankedSelector, 0, len(res.Ranked))
		for _, cand := range res.Ranked {
			matches, _ := css.MatchAll(css.Root(n), cand.Selector)
			ranked = append(ranked, rankedSelector{
				Selector:   cand.Selector,
				Tier:       cand.Tier,
				Reason:     scorer.Explain(cand.Selector).Reason,
				MatchCount: len(matches),
				Preview:    extract.Preview(root, cand.Selector, suggestPreview),
			})
		}
		suggestions = append(suggestions, suggestion{
			Best:         res.Best,
			Alternatives: res.Alternatives,
			Ranked:       ranked,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"target":      req.Target,
		"matchCount":  targets.Length(),
		"suggestions": suggestions,
	})
}
