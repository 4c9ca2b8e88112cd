package selector

import (
	"slices"
	"weak"

	"golang.org/x/net/html"

	"github.com/tmdgusya/crawl-selector/internal/css"
)

const pruneEvery = 256

// QuickResult is the hover-time selector for an element.
type QuickResult struct {
	Selector   string `json:"selector"`
	MatchCount int    `json:"matchCount"`
}

// QuickCache memoizes Quick results per element for one picking session. Keys
// are weak pointers, so cached entries never keep a detached node alive.
// A QuickCache is not safe for concurrent use.
type QuickCache struct {
	synth   *Synthesizer
	entries map[weak.Pointer[html.Node]]QuickResult
	misses  int
}

// NewQuickCache returns an empty cache backed by synth.
func NewQuickCache(synth *Synthesizer) *QuickCache {
	return &QuickCache{
		synth:   synth,
		entries: make(map[weak.Pointer[html.Node]]QuickResult),
	}
}

// Lookup returns the cached result for n, computing it on a miss. Hits are
// returned without re-validation. After Discard nothing is stored.
func (c *QuickCache) Lookup(n *html.Node) QuickResult {
	el := element(n)
	if el == nil {
		return QuickResult{}
	}
	if c.entries == nil {
		return c.synth.Quick(el)
	}

	key := weak.Make(el)
	if res, ok := c.entries[key]; ok {
		return res
	}

	res := c.synth.Quick(el)
	c.entries[key] = res
	c.misses++
	if c.misses%pruneEvery == 0 {
		c.prune()
	}
	return res
}

// Len reports the number of cached entries.
func (c *QuickCache) Len() int {
	return len(c.entries)
}

// Discard drops every entry. The cache must not be reused for another session.
func (c *QuickCache) Discard() {
	c.entries = nil
}

func (c *QuickCache) prune() {
	for key := range c.entries {
		if key.Value() == nil {
			delete(c.entries, key)
		}
	}
}

// Quick ranks only el's own attribute fragments, skipping the ancestor walk.
func (s *Synthesizer) Quick(n *html.Node) QuickResult {
	el := element(n)
	if el == nil {
		return QuickResult{}
	}
	root := css.Root(el)

	best := QuickResult{}
	bestTier := TierTag + 1
	for _, sel := range s.Fragments(el) {
		matches, err := css.MatchAll(root, sel)
		if err != nil || !slices.Contains(matches, el) {
			continue
		}
		if tier := s.scorer.Score(sel); tier < bestTier {
			best = QuickResult{Selector: sel, MatchCount: len(matches)}
			bestTier = tier
		}
	}
	if best.Selector != "" {
		return best
	}

	tag := tagName(el)
	matches, err := css.MatchAll(root, tag)
	if err != nil {
		return QuickResult{Selector: tag, MatchCount: 1}
	}
	return QuickResult{Selector: tag, MatchCount: len(matches)}
}
