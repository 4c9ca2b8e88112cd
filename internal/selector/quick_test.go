package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"

	"github.com/tmdgusya/crawl-selector/internal/selector"
)

func TestQuickCache_LookupAndHit(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)
	h2 := node(t, doc, "h2")
	cache := selector.NewQuickCache(selector.NewSynthesizer())

	first := cache.Lookup(h2)
	assert.Equal(t, selector.QuickResult{Selector: "h2.title", MatchCount: 2}, first)
	assert.Equal(t, 1, cache.Len())

	// Hits are served without re-validation.
	h2.Attr = []html.Attribute{{Key: "class", Val: "renamed"}}
	assert.Equal(t, first, cache.Lookup(h2))
	assert.Equal(t, 1, cache.Len())
}

func TestQuickCache_SkipsAncestorWalk(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)
	button := node(t, doc, "button")

	res := selector.NewQuickCache(selector.NewSynthesizer()).Lookup(button)
	assert.Equal(t, `[role="button"][aria-label="Close"]`, res.Selector)
	assert.Equal(t, 1, res.MatchCount)

	li := node(t, doc, "li")
	res = selector.NewSynthesizer().Quick(li)
	assert.Equal(t, selector.QuickResult{Selector: "li", MatchCount: 2}, res)
}

func TestQuickCache_Discard(t *testing.T) {
	t.Parallel()

	doc := parse(t, page)
	cache := selector.NewQuickCache(selector.NewSynthesizer())
	cache.Lookup(node(t, doc, "h2"))
	cache.Lookup(node(t, doc, "p"))
	assert.Equal(t, 2, cache.Len())

	cache.Discard()
	assert.Equal(t, 0, cache.Len())

	res := cache.Lookup(node(t, doc, "p"))
	assert.Equal(t, `#\31 23`, res.Selector)
	assert.Equal(t, 0, cache.Len())
}
