package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tmdgusya/crawl-selector/internal/transform"
)

// Export format constants.
const (
	SchemaURL       = "https://crawl-bot/recipe.schema.json"
	FormatVersion   = "1.0"
	SelectorTypeCSS = "css"
)

// Import errors.
var (
	ErrUnsupportedVersion      = errors.New("unsupported recipe version")
	ErrUnsupportedSelectorType = errors.New("unsupported selector type")
)

type exportedRecipe struct {
	Schema     string          `json:"$schema"`
	Name       string          `json:"name"`
	URLPattern string          `json:"url_pattern"`
	Version    string          `json:"version"`
	Fields     []exportedField `json:"fields"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

type exportedField struct {
	FieldName         string           `json:"field_name"`
	Selector          string           `json:"selector"`
	SelectorType      string           `json:"selector_type"`
	FallbackSelectors []string         `json:"fallback_selectors,omitempty"`
	Extract           ExtractConfig    `json:"extract"`
	Transforms        []transform.Step `json:"transforms"`
	Multiple          bool             `json:"multiple"`
	ListContainer     string           `json:"list_container,omitempty"`
}

// Export renders r in the portable recipe format consumed by execution engines.
// Field and recipe ids are not part of the format.
func Export(r CrawlRecipe) ([]byte, error) {
	out := exportedRecipe{
		Schema:     SchemaURL,
		Name:       r.Name,
		URLPattern: r.URLPattern,
		Version:    FormatVersion,
		Fields:     make([]exportedField, 0, len(r.Fields)),
		Pagination: r.Pagination,
	}

	for _, f := range r.Fields {
		steps := f.Transforms
		if steps == nil {
			steps = []transform.Step{}
		}
		out.Fields = append(out.Fields, exportedField{
			FieldName:         f.FieldName,
			Selector:          f.Selector,
			SelectorType:      SelectorTypeCSS,
			FallbackSelectors: f.FallbackSelectors,
			Extract:           f.Extract,
			Transforms:        steps,
			Multiple:          f.Multiple,
			ListContainer:     f.ListContainer,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal recipe: %w", err)
	}
	return data, nil
}

// Import parses the portable format into a new recipe with fresh ids.
func Import(data []byte) (*CrawlRecipe, error) {
	var in exportedRecipe
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse recipe: %w", err)
	}

	if in.Version != "" && in.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, in.Version)
	}

	now := time.Now().UTC()
	r := &CrawlRecipe{
		ID:         uuid.NewString(),
		Name:       in.Name,
		URLPattern: in.URLPattern,
		Fields:     make([]SelectorField, 0, len(in.Fields)),
		Pagination: in.Pagination,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for i, f := range in.Fields {
		if f.SelectorType != "" && f.SelectorType != SelectorTypeCSS {
			return nil, fmt.Errorf("field %d (%s): %w: %s", i, f.FieldName, ErrUnsupportedSelectorType, f.SelectorType)
		}
		extract := f.Extract
		if extract.Type == "" {
			extract = Text()
		}
		r.Fields = append(r.Fields, SelectorField{
			ID:                uuid.NewString(),
			FieldName:         f.FieldName,
			Selector:          f.Selector,
			FallbackSelectors: slices.Clone(f.FallbackSelectors),
			Extract:           extract,
			Transforms:        slices.Clone(f.Transforms),
			Multiple:          f.Multiple,
			ListContainer:     f.ListContainer,
		})
	}

	return r, nil
}
