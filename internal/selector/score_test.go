package selector_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tmdgusya/crawl-selector/internal/selector"
)

func TestScore_Tiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sel  string
		want int
	}{
		{`[data-testid="price"]`, selector.TierDataAttr},
		{`.item:not([data-x])`, selector.TierDataAttr},
		{`#main [data-id="3"]`, selector.TierDataAttr},
		{`#main`, selector.TierID},
		{`#\31 23`, selector.TierID},
		{`#ember123`, selector.TierTag},
		{`#mui-42.btn`, selector.TierClass},
		{`#3f2a9c1e-77aa-4b1c-9d2e-0a1b2c3d4e5f`, selector.TierTag},
		{`#\:r1\:`, selector.TierTag},
		{`[role="button"]`, selector.TierARIA},
		{`button[aria-label="Close"]`, selector.TierARIA},
		{`div.product`, selector.TierClass},
		{`div.css-1a2b3c`, selector.TierHashClass},
		{`div.product.sc-bdVaJa`, selector.TierHashClass},
		{`ul > li`, selector.TierStructural},
		{`li:nth-child(2)`, selector.TierStructural},
		{`a[href="#top"]`, selector.TierTag},
		{`span`, selector.TierTag},
		{``, selector.TierTag},
		{`[[[`, selector.TierTag},
	}

	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, selector.Score(tt.sel))
		})
	}
}

func TestScore_RangeAndPurity(t *testing.T) {
	t.Parallel()

	alphabet := []byte(`abc#.[]=">:-_\ 0123data-rolearia`)
	r := rand.New(rand.NewPCG(1, 2))

	for range 2000 {
		b := make([]byte, r.IntN(24))
		for i := range b {
			b[i] = alphabet[r.IntN(len(alphabet))]
		}
		sel := string(b)

		first := selector.Score(sel)
		assert.GreaterOrEqual(t, first, 1, sel)
		assert.LessOrEqual(t, first, 7, sel)
		assert.Equal(t, first, selector.Score(sel), sel)
	}
}

func TestExplain(t *testing.T) {
	t.Parallel()

	exp := selector.Explain("#main")
	assert.Equal(t, selector.TierID, exp.Tier)
	assert.Equal(t, "stable id", exp.Reason)
}

func TestNewScorer_CustomPredicates(t *testing.T) {
	t.Parallel()

	s := selector.NewScorer(selector.Predicates{
		UnstableClass: func(class string) bool { return class == "volatile" },
	})
	assert.Equal(t, selector.TierHashClass, s.Score("div.volatile"))
	assert.Equal(t, selector.TierClass, s.Score("div.css-1a2b3c"))
	assert.Equal(t, selector.TierTag, s.Score("#ember1"))
}

func FuzzScore(f *testing.F) {
	for _, seed := range []string{"", "#a", `[data-x="\"]"]`, "a > b", `\`, "["} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, sel string) {
		tier := selector.Score(sel)
		if tier < 1 || tier > 7 {
			t.Fatalf("Score(%q) = %d", sel, tier)
		}
	})
}
