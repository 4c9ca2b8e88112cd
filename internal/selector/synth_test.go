package selector_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/tmdgusya/crawl-selector/internal/css"
	"github.com/tmdgusya/crawl-selector/internal/selector"
)

const page = `<html><body>
<div id="main">
  <article class="card css-1x2y3z" data-testid="card-1" data-reactid=".0.1"><h2 class="title">A</h2><span>plain</span></article>
  <article class="card"><h2 class="title">B</h2><span>x</span></article>
  <button id="ember42" role="button" aria-label="Close">x</button>
  <ul><li>1</li><li>2</li></ul>
  <p id="123">numeric id</p>
  <a class="a:b" href="#top">odd class</a>
</div>
</body></html>`

func parse(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func node(t *testing.T, doc *goquery.Document, sel string) *html.Node {
	t.Helper()
	found := doc.Find(sel)
	require.Positive(t, found.Length(), sel)
	return found.Nodes[0]
}

func TestSynthesize_PrefersDataAttribute(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)
	res := selector.NewSynthesizer().Synthesize(node(t, doc, `article[data-testid]`))

	assert.Equal(t, `[data-testid="card-1"]`, res.Best)
	assert.Equal(t, []string{"article.card"}, res.Alternatives)
	for _, c := range res.Ranked {
		assert.NotContains(t, c.Selector, "css-1x2y3z")
		assert.NotContains(t, c.Selector, "data-reactid")
	}
}

func TestSynthesize_AncestorAnchorOutranksRole(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)
	res := selector.NewSynthesizer().Synthesize(node(t, doc, "button"))

	assert.Equal(t, "#main button", res.Best)
	assert.Equal(t, []string{`[role="button"][aria-label="Close"]`}, res.Alternatives)
}

func TestSynthesize_FallsBackToTag(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)
	res := selector.NewSynthesizer().Synthesize(node(t, doc, "li"))

	assert.Equal(t, "li", res.Best)
	assert.Empty(t, res.Alternatives)
}

func TestSynthesize_EscapesIdentifiers(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)

	p := node(t, doc, "p")
	res := selector.NewSynthesizer().Synthesize(p)
	assert.Equal(t, `#\31 23`, res.Best)

	a := node(t, doc, "a")
	res = selector.NewSynthesizer().Synthesize(a)
	matches, err := css.MatchAll(doc.Nodes[0], res.Best)
	require.NoError(t, err)
	assert.Contains(t, matches, a)
}

func TestSynthesize_BestAlwaysSelectsTarget(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)
	root := doc.Nodes[0]
	synth := selector.NewSynthesizer()

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		el := s.Nodes[0]
		res := synth.Synthesize(el)

		matches, err := css.MatchAll(root, res.Best)
		require.NoError(t, err, res.Best)
		assert.True(t, slices.Contains(matches, el), "%s does not select <%s>", res.Best, el.Data)
		assert.LessOrEqual(t, len(res.Alternatives), selector.DefaultMaxAlternatives)

		for _, alt := range res.Alternatives {
			altMatches, altErr := css.MatchAll(root, alt)
			require.NoError(t, altErr, alt)
			assert.Contains(t, altMatches, el)
		}
	})
}

func TestSynthesize_SortsByTierStably(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<section id="s"><div class="x y" role="region" data-a="1" data-b="2" id="d"></div></section>`)
	res := selector.NewSynthesizer().Synthesize(node(t, doc, "div"))

	want := []string{`[data-a="1"]`, `[data-b="2"]`, "#d", "#s div", `[role="region"]`, "div.x", "div.y"}
	got := make([]string, 0, len(res.Ranked))
	for _, c := range res.Ranked {
		got = append(got, c.Selector)
	}
	assert.Equal(t, want, got[:len(want)])
	assert.Equal(t, want[0], res.Best)
	assert.Equal(t, want[1:5], res.Alternatives)
}

func TestSynthesize_Options(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<div class="x y z w v"></div>`)
	el := node(t, doc, "div")

	res := selector.NewSynthesizer(selector.WithMaxAlternatives(1)).Synthesize(el)
	assert.Equal(t, "div.x", res.Best)
	assert.Equal(t, []string{"div.y"}, res.Alternatives)

	noClasses := selector.WithPredicates(selector.Predicates{UnstableClass: func(string) bool { return true }})
	res = selector.NewSynthesizer(noClasses).Synthesize(el)
	assert.Equal(t, "div", res.Best)
}

func TestSynthesize_NonElementNodes(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)
	h2 := node(t, doc, "h2")

	res := selector.NewSynthesizer().Synthesize(h2.FirstChild)
	assert.Equal(t, selector.NewSynthesizer().Synthesize(h2).Best, res.Best)

	empty := selector.NewSynthesizer().Synthesize(nil)
	assert.Empty(t, empty.Best)
	assert.Empty(t, empty.Alternatives)
}
