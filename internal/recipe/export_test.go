package recipe_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/transform"
)

func sampleRecipe() recipe.CrawlRecipe {
	maxPages := 5
	return recipe.CrawlRecipe{
		ID:         "r1",
		Name:       "Shop",
		URLPattern: "https://shop.example/*",
		Fields: []recipe.SelectorField{
			{
				ID:         "f1",
				FieldName:  "title",
				Selector:   "h1.title",
				Extract:    recipe.Text(),
				Transforms: []transform.Step{transform.Trim()},
			},
			{
				ID:                "f2",
				FieldName:         "price",
				Selector:          `[data-testid="price"]`,
				FallbackSelectors: []string{".price", "span.amount"},
				Extract:           recipe.Text(),
				Transforms: []transform.Step{
					transform.StripHTML(), transform.Replace(",", ""), transform.Default("0"),
				},
			},
			{
				ID:            "f3",
				FieldName:     "links",
				Selector:      "a",
				Extract:       recipe.Attribute("href"),
				Multiple:      true,
				ListContainer: "#list",
			},
		},
		Pagination: &recipe.Pagination{Type: recipe.PaginationNextButton, Selector: "a.next", MaxPages: &maxPages},
	}
}

func TestExport_Format(t *testing.T) {
	t.Parallel()

	data, err := recipe.Export(sampleRecipe())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, recipe.SchemaURL, doc["$schema"])
	assert.Equal(t, "1.0", doc["version"])
	assert.Equal(t, "Shop", doc["name"])
	assert.NotContains(t, doc, "id")

	fields := doc["fields"].([]any)
	require.Len(t, fields, 3)

	title := fields[0].(map[string]any)
	assert.Equal(t, "css", title["selector_type"])
	assert.NotContains(t, title, "fallback_selectors")
	assert.NotContains(t, title, "list_container")
	assert.NotContains(t, title, "id")

	price := fields[1].(map[string]any)
	assert.Equal(t, []any{".price", "span.amount"}, price["fallback_selectors"])
	assert.Equal(t, []any{
		map[string]any{"type": "strip_html"},
		map[string]any{"type": "replace", "pattern": ",", "replacement": ""},
		map[string]any{"type": "default", "default_value": "0"},
	}, price["transforms"])

	links := fields[2].(map[string]any)
	assert.Equal(t, []any{}, links["transforms"])
	assert.Equal(t, map[string]any{"type": "attribute", "attribute": "href"}, links["extract"])
	assert.Equal(t, true, links["multiple"])
	assert.Equal(t, "#list", links["list_container"])

	pagination := doc["pagination"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "next_button", "selector": "a.next", "max_pages": float64(5)}, pagination)
}

func TestExport_EmptyFallbacksOmitted(t *testing.T) {
	t.Parallel()

	r := recipe.CrawlRecipe{Fields: []recipe.SelectorField{
		{FieldName: "a", Selector: "a", FallbackSelectors: []string{}, Extract: recipe.Text()},
	}}
	data, err := recipe.Export(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "fallback_selectors")
}

func TestImport_RoundTrip(t *testing.T) {
	t.Parallel()

	first, err := recipe.Export(sampleRecipe())
	require.NoError(t, err)

	imported, err := recipe.Import(first)
	require.NoError(t, err)
	assert.NotEmpty(t, imported.ID)
	for _, f := range imported.Fields {
		assert.NotEmpty(t, f.ID)
	}

	second, err := recipe.Export(*imported)
	require.NoError(t, err)

	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Errorf("re-export differs (-first +second):\n%s", diff)
	}
}

func TestImport_Rejects(t *testing.T) {
	t.Parallel()

	_, err := recipe.Import([]byte(`{"version":"2.0","fields":[]}`))
	require.ErrorIs(t, err, recipe.ErrUnsupportedVersion)

	_, err = recipe.Import([]byte(`{"version":"1.0","fields":[{"field_name":"a","selector":"//a","selector_type":"xpath"}]}`))
	require.ErrorIs(t, err, recipe.ErrUnsupportedSelectorType)

	_, err = recipe.Import([]byte(`{`))
	require.Error(t, err)
}

func TestImport_DefaultsExtractToText(t *testing.T) {
	t.Parallel()

	r, err := recipe.Import([]byte(`{"fields":[{"field_name":"a","selector":"a"}]}`))
	require.NoError(t, err)
	require.Len(t, r.Fields, 1)
	assert.Equal(t, recipe.Text(), r.Fields[0].Extract)
}
