// Package recipe holds the recipe data model, its portable export format, the
// recipe store backends and the field editor that turns picks into fields.
package recipe

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/tmdgusya/crawl-selector/internal/transform"
)

// ExtractType discriminates ExtractConfig.
type ExtractType string

// Extraction modes.
const (
	ExtractText      ExtractType = "text"
	ExtractHTML      ExtractType = "html"
	ExtractAttribute ExtractType = "attribute"
)

// ExtractConfig says what to read from a matched element. Attribute is only
// meaningful for ExtractAttribute.
type ExtractConfig struct {
	Type      ExtractType `json:"type"`
	Attribute string      `json:"attribute,omitempty"`
}

// Text extracts rendered text content.
func Text() ExtractConfig { return ExtractConfig{Type: ExtractText} }

// HTML extracts serialized inner markup.
func HTML() ExtractConfig { return ExtractConfig{Type: ExtractHTML} }

// Attribute extracts the named attribute.
func Attribute(name string) ExtractConfig {
	return ExtractConfig{Type: ExtractAttribute, Attribute: name}
}

// SelectorField is one named extraction rule of a recipe.
type SelectorField struct {
	ID                string           `json:"id"`
	FieldName         string           `json:"field_name"`
	Selector          string           `json:"selector"`
	FallbackSelectors []string         `json:"fallback_selectors,omitempty"`
	Extract           ExtractConfig    `json:"extract"`
	Transforms        []transform.Step `json:"transforms"`
	Multiple          bool             `json:"multiple"`
	ListContainer     string           `json:"list_container,omitempty"`
}

// Selectors returns the primary selector followed by the fallbacks.
func (f SelectorField) Selectors() []string {
	return append([]string{f.Selector}, f.FallbackSelectors...)
}

// Clone returns a deep copy of f.
func (f SelectorField) Clone() SelectorField {
	f.FallbackSelectors = slices.Clone(f.FallbackSelectors)
	f.Transforms = slices.Clone(f.Transforms)
	return f
}

// PaginationType discriminates Pagination.
type PaginationType string

// Pagination kinds.
const (
	PaginationNextButton     PaginationType = "next_button"
	PaginationURLPattern     PaginationType = "url_pattern"
	PaginationInfiniteScroll PaginationType = "infinite_scroll"
)

// Pagination describes how an execution engine walks result pages. It is
// carried through untouched.
type Pagination struct {
	Type        PaginationType `json:"type"`
	Selector    string         `json:"selector,omitempty"`
	URLTemplate string         `json:"url_template,omitempty"`
	MaxPages    *int           `json:"max_pages,omitempty"`
	WaitMS      *int           `json:"wait_ms,omitempty"`
}

// CrawlRecipe owns an ordered list of fields.
type CrawlRecipe struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	URLPattern string          `json:"url_pattern"`
	Fields     []SelectorField `json:"fields"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r CrawlRecipe) Clone() CrawlRecipe {
	fields := make([]SelectorField, len(r.Fields))
	for i, f := range r.Fields {
		fields[i] = f.Clone()
	}
	r.Fields = fields
	if r.Pagination != nil {
		p := *r.Pagination
		p.MaxPages = clonePtr(p.MaxPages)
		p.WaitMS = clonePtr(p.WaitMS)
		r.Pagination = &p
	}
	return r
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// FieldIndex returns the index of the field with id, or -1.
func (r *CrawlRecipe) FieldIndex(id string) int {
	return slices.IndexFunc(r.Fields, func(f SelectorField) bool { return f.ID == id })
}

// PendingDuplicate is a pick whose selector collides with an existing field,
// waiting for a merge or reject decision.
type PendingDuplicate struct {
	Selector        string            `json:"selector"`
	Alternatives    []string          `json:"alternatives"`
	Attributes      map[string]string `json:"attributes"`
	RecipeID        string            `json:"recipeId"`
	ExistingFieldID string            `json:"existingFieldId"`
}

// Value is a single string or a list of strings. A list always marshals as a
// JSON array, never null.
type Value struct {
	list   bool
	single string
	items  []string
}

// Single wraps one value.
func Single(s string) Value { return Value{single: s} }

// List wraps several values.
func List(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{list: true, items: items}
}

// Empty returns the empty value shaped for multiple.
func Empty(multiple bool) Value {
	if multiple {
		return List(nil)
	}
	return Single("")
}

// IsList reports whether v holds a list.
func (v Value) IsList() bool { return v.list }

// String returns the single value, or "" for a list.
func (v Value) String() string { return v.single }

// Strings returns the list, or a one element slice for a single value.
func (v Value) Strings() []string {
	if v.list {
		return v.items
	}
	return []string{v.single}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	return json.Marshal(v.single)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []string
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*v = List(items)
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return err
	}
	*v = Single(s)
	return nil
}

// FieldTestResult is the outcome of extracting one field.
type FieldTestResult struct {
	Success      bool   `json:"success"`
	Raw          Value  `json:"raw"`
	Transformed  Value  `json:"transformed"`
	MatchCount   int    `json:"matchCount"`
	UsedSelector string `json:"usedSelector"`
	Error        string `json:"error,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// Failed builds an unsuccessful result shaped for field.
func Failed(field SelectorField, msg string) FieldTestResult {
	return FieldTestResult{
		Raw:          Empty(field.Multiple),
		Transformed:  Empty(field.Multiple),
		UsedSelector: field.Selector,
		Error:        msg,
		Timestamp:    time.Now().UnixMilli(),
	}
}

// FailedAll builds one failed result per field, keyed by field id.
func FailedAll(fields []SelectorField, msg string) map[string]FieldTestResult {
	out := make(map[string]FieldTestResult, len(fields))
	for _, f := range fields {
		out[f.ID] = Failed(f, msg)
	}
	return out
}
