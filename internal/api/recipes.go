package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/transform"
)

// maxImportBytes bounds an imported recipe document.
const maxImportBytes = 1 << 20

type recipeHandler struct {
	store  recipe.Store
	editor *recipe.Editor
	log    logger.Logger
}

type recipeRequest struct {
	Name       string                 `json:"name" binding:"required"`
	URLPattern string                 `json:"url_pattern"`
	Fields     []recipe.SelectorField `json:"fields"`
	Pagination *recipe.Pagination     `json:"pagination"`
}

type setActiveRequest struct {
	// ID is the recipe to activate; null or empty clears the active recipe.
	ID *string `json:"id"`
}

type resolveDuplicateRequest struct {
	Merge bool `json:"merge"`
}

// List returns every recipe and the active id.
func (h *recipeHandler) List(c *gin.Context) {
	snap, err := h.store.Get(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load recipes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recipes":  snap.Recipes,
		"activeId": snap.ActiveID,
		"count":    len(snap.Recipes),
	})
}

func (h *recipeHandler) Create(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := time.Now().UTC()
	r := recipe.CrawlRecipe{
		ID:         uuid.NewString(),
		Name:       req.Name,
		URLPattern: req.URLPattern,
		Fields:     normalizeFields(req.Fields),
		Pagination: req.Pagination,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid recipe", err)
		return
	}
	if err := h.store.Put(c.Request.Context(), r); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save recipe", err)
		return
	}

	h.log.Info("Recipe created", logger.String("recipe_id", r.ID), logger.String("name", r.Name))
	c.JSON(http.StatusCreated, r)
}

func (h *recipeHandler) Get(c *gin.Context) {
	snap, err := h.store.Get(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load recipes", err)
		return
	}
	r, ok := snap.Find(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "Recipe not found", nil)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *recipeHandler) Update(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	r, err := recipe.Update(c.Request.Context(), h.store, c.Param("id"), func(r *recipe.CrawlRecipe) error {
		r.Name = req.Name
		r.URLPattern = req.URLPattern
		r.Fields = normalizeFields(req.Fields)
		r.Pagination = req.Pagination
		return r.Validate()
	})
	if err != nil {
		respondStoreError(c, "Failed to update recipe", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *recipeHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Remove(c.Request.Context(), id); err != nil {
		respondStoreError(c, "Failed to delete recipe", err)
		return
	}
	h.log.Info("Recipe deleted", logger.String("recipe_id", id))
	c.Status(http.StatusNoContent)
}

// Export serves the portable document as a download.
func (h *recipeHandler) Export(c *gin.Context) {
	snap, err := h.store.Get(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load recipes", err)
		return
	}
	r, ok := snap.Find(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "Recipe not found", nil)
		return
	}
	if err = r.Validate(); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "Recipe cannot be exported", err)
		return
	}

	data, err := recipe.Export(r)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to export recipe", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(r.Name)))
	c.Data(http.StatusOK, "application/json", data)
}

// Import reads a portable document and saves it as a new recipe.
func (h *recipeHandler) Import(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	r, err := recipe.Import(data)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid recipe document", err)
		return
	}
	if err = r.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid recipe", err)
		return
	}
	if err = h.store.Put(c.Request.Context(), *r); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save recipe", err)
		return
	}

	h.log.Info("Recipe imported",
		logger.String("recipe_id", r.ID),
		logger.Int("fields", len(r.Fields)),
	)
	c.JSON(http.StatusCreated, r)
}

func (h *recipeHandler) GetActive(c *gin.Context) {
	r, err := recipe.Active(c.Request.Context(), h.store)
	if err != nil {
		respondStoreError(c, "Failed to load active recipe", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *recipeHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := ""
	if req.ID != nil {
		id = *req.ID
	}
	if err := h.store.SetActive(c.Request.Context(), id); err != nil {
		respondStoreError(c, "Failed to set active recipe", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeId": id})
}

func (h *recipeHandler) AddField(c *gin.Context) {
	var f recipe.SelectorField
	if err := c.ShouldBindJSON(&f); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	added, err := h.editor.AddField(c.Request.Context(), f)
	if err != nil {
		respondStoreError(c, "Failed to add field", err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// UpdateField replaces the field's content, keeping its id.
func (h *recipeHandler) UpdateField(c *gin.Context) {
	var f recipe.SelectorField
	if err := c.ShouldBindJSON(&f); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.editor.UpdateField(c.Request.Context(), c.Param("fieldId"), func(cur *recipe.SelectorField) {
		*cur = normalizeField(f)
	})
	if err != nil {
		respondStoreError(c, "Failed to update field", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *recipeHandler) DeleteField(c *gin.Context) {
	if err := h.editor.DeleteField(c.Request.Context(), c.Param("fieldId")); err != nil {
		respondStoreError(c, "Failed to delete field", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *recipeHandler) PendingDuplicate(c *gin.Context) {
	pending, ok := h.editor.Pending()
	if !ok {
		respondError(c, http.StatusNotFound, "No pending duplicate", nil)
		return
	}
	c.JSON(http.StatusOK, pending)
}

func (h *recipeHandler) ResolveDuplicate(c *gin.Context) {
	var req resolveDuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := h.editor.Pending(); !ok {
		respondError(c, http.StatusNotFound, "No pending duplicate", nil)
		return
	}

	if err := h.editor.ResolveDuplicate(c.Request.Context(), req.Merge); err != nil {
		respondStoreError(c, "Failed to resolve duplicate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"merged": req.Merge})
}

func respondStoreError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, recipe.ErrNotFound), errors.Is(err, recipe.ErrFieldNotFound):
		respondError(c, http.StatusNotFound, msg, err)
	case errors.Is(err, recipe.ErrNoActiveRecipe):
		respondError(c, http.StatusConflict, msg, err)
	case errors.Is(err, recipe.ErrInvalidRecipe), errors.Is(err, recipe.ErrEmptySelector):
		respondError(c, http.StatusBadRequest, msg, err)
	default:
		respondError(c, http.StatusInternalServerError, msg, err)
	}
}

func normalizeFields(fields []recipe.SelectorField) []recipe.SelectorField {
	out := make([]recipe.SelectorField, len(fields))
	for i, f := range fields {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		out[i] = normalizeField(f)
	}
	return out
}

func normalizeField(f recipe.SelectorField) recipe.SelectorField {
	if f.Extract.Type == "" {
		f.Extract = recipe.Text()
	}
	if f.Transforms == nil {
		f.Transforms = []transform.Step{}
	}
	return f
}

func exportFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "recipe.json"
	}
	return string(out) + ".json"
}
