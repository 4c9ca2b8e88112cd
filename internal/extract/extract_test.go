package extract_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdgusya/crawl-selector/internal/extract"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/transform"
)

func doc(t *testing.T, markup string) *goquery.Selection {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return d.Selection
}

const shop = `<html><body>
<h1 class="title"> Phone X </h1>
<div class="price" data-sku="A-1">  <span>₩1,299,000</span>  </div>
<ul id="tags"><li class="tag"><a href="/a">A</a></li><li class="tag"><a href="/b">B</a></li></ul>
<p class="present">here</p>
</body></html>`

func TestExtract_ScopedMultiple(t *testing.T) {
	t.Parallel()

	root := doc(t, `<div id="container"><span class="tag">A</span><span class="tag">B</span></div><span class="tag">Outside</span>`)
	res := extract.Extract(recipe.SelectorField{
		Selector:      ".tag",
		Multiple:      true,
		ListContainer: "#container",
		Extract:       recipe.Text(),
	}, root)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"A", "B"}, res.Raw.Strings())
	assert.Equal(t, 2, res.MatchCount)
	assert.Equal(t, ".tag", res.UsedSelector)
}

func TestExtract_MissingContainer(t *testing.T) {
	t.Parallel()

	for _, multiple := range []bool{false, true} {
		res := extract.Extract(recipe.SelectorField{
			Selector:      ".tag",
			Multiple:      multiple,
			ListContainer: "#nonexistent",
		}, doc(t, shop))

		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "#nonexistent")
		assert.Equal(t, 0, res.MatchCount)
		assert.Equal(t, multiple, res.Raw.IsList())
		assert.Equal(t, multiple, res.Transformed.IsList())
	}
}

func TestExtract_InvalidContainer(t *testing.T) {
	t.Parallel()

	res := extract.Extract(recipe.SelectorField{Selector: "p", ListContainer: "div["}, doc(t, shop))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "list container")
	assert.Contains(t, res.Error, "not a valid selector")
}

func TestExtract_ChainedTransform(t *testing.T) {
	t.Parallel()

	res := extract.Extract(recipe.SelectorField{
		Selector:   ".price",
		Extract:    recipe.HTML(),
		Transforms: []transform.Step{transform.StripHTML(), transform.Trim(), transform.ExtractNumber()},
	}, doc(t, shop))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "  <span>₩1,299,000</span>  ", res.Raw.String())
	assert.Equal(t, "1299000", res.Transformed.String())
	assert.Equal(t, 1, res.MatchCount)
}

func TestExtract_FallbackOrdering(t *testing.T) {
	t.Parallel()

	root := doc(t, shop)

	res := extract.Extract(recipe.SelectorField{
		Selector:          ".missing",
		FallbackSelectors: []string{".also-missing", ".present", "h1"},
	}, root)
	require.True(t, res.Success)
	assert.Equal(t, ".present", res.UsedSelector)
	assert.Equal(t, "here", res.Raw.String())

	res = extract.Extract(recipe.SelectorField{
		Selector:          "h1",
		FallbackSelectors: []string{".present"},
	}, root)
	assert.Equal(t, "h1", res.UsedSelector)
}

func TestExtract_ParseErrorsAreSkipped(t *testing.T) {
	t.Parallel()

	root := doc(t, shop)

	res := extract.Extract(recipe.SelectorField{
		Selector:          "div[",
		FallbackSelectors: []string{".present"},
	}, root)
	require.True(t, res.Success)
	assert.Equal(t, ".present", res.UsedSelector)

	res = extract.Extract(recipe.SelectorField{
		Selector:          ".missing",
		FallbackSelectors: []string{"p:nth-child(", ".gone"},
		Multiple:          true,
	}, root)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "p:nth-child(")
	assert.Equal(t, ".missing", res.UsedSelector)
	assert.Equal(t, []string{}, res.Raw.Strings())
}

func TestExtract_NoMatch(t *testing.T) {
	t.Parallel()

	res := extract.Extract(recipe.SelectorField{Selector: ".missing", FallbackSelectors: []string{".gone"}}, doc(t, shop))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no element matched")
	assert.Equal(t, ".missing", res.UsedSelector)
	assert.False(t, res.Raw.IsList())
	assert.Empty(t, res.Raw.String())
}

func TestExtract_ExtractModes(t *testing.T) {
	t.Parallel()

	root := doc(t, shop)

	res := extract.Extract(recipe.SelectorField{Selector: "li.tag a", Extract: recipe.Attribute("href"), Multiple: true}, root)
	assert.Equal(t, []string{"/a", "/b"}, res.Raw.Strings())

	res = extract.Extract(recipe.SelectorField{Selector: ".price", Extract: recipe.Attribute("data-missing")}, root)
	require.True(t, res.Success)
	assert.Empty(t, res.Raw.String())

	res = extract.Extract(recipe.SelectorField{Selector: "h1", Extract: recipe.Text()}, root)
	assert.Equal(t, " Phone X ", res.Raw.String())

	res = extract.Extract(recipe.SelectorField{Selector: "#tags", Extract: recipe.HTML()}, root)
	assert.Equal(t, `<li class="tag"><a href="/a">A</a></li><li class="tag"><a href="/b">B</a></li>`, res.Raw.String())
}

func TestExtract_MultiplicityShape(t *testing.T) {
	t.Parallel()

	root := doc(t, shop)
	selectors := []string{"li", ".missing", "div[", "h1"}

	for _, sel := range selectors {
		for _, multiple := range []bool{false, true} {
			res := extract.Extract(recipe.SelectorField{Selector: sel, Multiple: multiple}, root)
			assert.Equal(t, multiple, res.Raw.IsList(), "%s multiple=%v", sel, multiple)
			assert.Equal(t, multiple, res.Transformed.IsList(), "%s multiple=%v", sel, multiple)
		}
	}
}

func TestExtract_TransformsEachValue(t *testing.T) {
	t.Parallel()

	res := extract.Extract(recipe.SelectorField{
		Selector:   "li.tag",
		Multiple:   true,
		Transforms: []transform.Step{transform.Replace("^", "tag:")},
	}, doc(t, shop))

	assert.Equal(t, []string{"A", "B"}, res.Raw.Strings())
	assert.Equal(t, []string{"tag:A", "tag:B"}, res.Transformed.Strings())
}

func TestExtractAll_IsolatesFailures(t *testing.T) {
	t.Parallel()

	fields := []recipe.SelectorField{
		{ID: "title", Selector: "h1", Transforms: []transform.Step{transform.Trim()}},
		{ID: "broken", Selector: "div["},
		{ID: "tags", Selector: "li", Multiple: true},
	}
	results := extract.ExtractAll(fields, doc(t, shop))

	require.Len(t, results, 3)
	assert.Equal(t, "Phone X", results["title"].Transformed.String())
	assert.False(t, results["broken"].Success)
	assert.Equal(t, 2, results["tags"].MatchCount)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	root := doc(t, shop)
	assert.Equal(t, []string{"A"}, extract.Preview(root, "li", 1))
	assert.Equal(t, []string{"A", "B"}, extract.Preview(root, "li", 10))
	assert.Nil(t, extract.Preview(root, "div[", 10))
	assert.Nil(t, extract.Preview(root, "li", 0))
}
