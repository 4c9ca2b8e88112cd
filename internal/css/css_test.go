package css_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdgusya/crawl-selector/internal/css"
)

func TestCompile_RejectsInvalidAndEmpty(t *testing.T) {
	t.Parallel()

	for _, sel := range []string{"", "   ", "div[", "##x", "p:nth-child("} {
		_, err := css.Compile(sel)
		require.Error(t, err, sel)

		var syntaxErr *css.SyntaxError
		assert.True(t, errors.As(err, &syntaxErr), sel)
	}
	assert.True(t, css.Valid("div.item > a[href]"))
}

func TestFind_ScopesToDescendants(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div id="a"><p>1</p></div><p>2</p>`))
	require.NoError(t, err)

	scope, err := css.Find(doc.Selection, "#a")
	require.NoError(t, err)
	require.Equal(t, 1, scope.Length())

	inner, err := css.Find(scope, "p")
	require.NoError(t, err)
	assert.Equal(t, "1", inner.Text())

	nodes, err := css.MatchAll(doc.Nodes[0], "p")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Equal(t, doc.Nodes[0], css.Root(nodes[0]))
}
