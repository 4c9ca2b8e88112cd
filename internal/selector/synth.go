package selector

import (
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/tmdgusya/crawl-selector/internal/css"
)

// Defaults for a Synthesizer.
const (
	DefaultAncestorDepth   = 5
	DefaultMaxAlternatives = 4
)

// Candidate is a validated selector with its tier.
type Candidate struct {
	Selector string `json:"selector"`
	Tier     int    `json:"tier"`
}

// Result is the outcome of a synthesis.
type Result struct {
	Best         string      `json:"best"`
	Alternatives []string    `json:"alternatives"`
	Ranked       []Candidate `json:"ranked"`
}

// Synthesizer builds selectors for elements of a parsed document.
type Synthesizer struct {
	preds           Predicates
	scorer          *Scorer
	ancestorDepth   int
	maxAlternatives int
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithPredicates replaces the volatility heuristics.
func WithPredicates(p Predicates) Option {
	return func(s *Synthesizer) { s.preds = p.withDefaults() }
}

// WithAncestorDepth bounds the ancestor walk.
func WithAncestorDepth(depth int) Option {
	return func(s *Synthesizer) {
		if depth > 0 {
			s.ancestorDepth = depth
		}
	}
}

// WithMaxAlternatives bounds the number of alternatives returned.
func WithMaxAlternatives(n int) Option {
	return func(s *Synthesizer) {
		if n >= 0 {
			s.maxAlternatives = n
		}
	}
}

// NewSynthesizer returns a Synthesizer.
func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		preds:           DefaultPredicates(),
		ancestorDepth:   DefaultAncestorDepth,
		maxAlternatives: DefaultMaxAlternatives,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scorer = NewScorer(s.preds)
	return s
}

// Scorer returns the scorer used for ranking.
func (s *Synthesizer) Scorer() *Scorer {
	return s.scorer
}

// Synthesize returns the most durable selector for n and ranked alternatives.
// Non-element nodes resolve to their nearest element ancestor. Candidates are
// validated against the tree n belongs to.
func (s *Synthesizer) Synthesize(n *html.Node) Result {
	el := element(n)
	if el == nil {
		return Result{Alternatives: []string{}}
	}
	root := css.Root(el)

	raw := s.Fragments(el)
	if anchored, ok := s.ancestorCandidate(root, el); ok {
		raw = append(raw, anchored)
	}

	ranked := s.rank(root, el, raw)
	if len(ranked) == 0 {
		tag := tagName(el)
		return Result{
			Best:         tag,
			Alternatives: []string{},
			Ranked:       []Candidate{{Selector: tag, Tier: s.scorer.Score(tag)}},
		}
	}

	alternatives := make([]string, 0, s.maxAlternatives)
	for _, c := range ranked[1:] {
		if len(alternatives) == s.maxAlternatives {
			break
		}
		alternatives = append(alternatives, c.Selector)
	}

	return Result{Best: ranked[0].Selector, Alternatives: alternatives, Ranked: ranked}
}

// Fragments returns the attribute based selectors for el alone, in discovery
// order: data-* attributes, id, role, then tag.class per stable class.
func (s *Synthesizer) Fragments(el *html.Node) []string {
	var out []string
	tag := tagName(el)

	for _, a := range el.Attr {
		if a.Namespace == "" && strings.HasPrefix(a.Key, "data-") && !s.preds.InternalAttr(a.Key) {
			out = append(out, AttrEquals(a.Key, a.Val))
		}
	}

	if id := attr(el, "id"); id != "" && !s.preds.AutoID(id) {
		out = append(out, "#"+EscapeIdent(id))
	}

	if role := attr(el, "role"); role != "" {
		frag := AttrEquals("role", role)
		if label := attr(el, "aria-label"); label != "" {
			frag += AttrEquals("aria-label", label)
		}
		out = append(out, frag)
	}

	for _, class := range strings.Fields(attr(el, "class")) {
		if !s.preds.UnstableClass(class) {
			out = append(out, tag+"."+EscapeIdent(class))
		}
	}

	return out
}

// ancestorCandidate walks up from el looking for an anchor whose fragment,
// composed with el's tag, selects exactly el.
func (s *Synthesizer) ancestorCandidate(root, el *html.Node) (string, bool) {
	tag := tagName(el)
	anc := el
	for depth := 0; depth < s.ancestorDepth; depth++ {
		anc = anc.Parent
		if anc == nil || anc.Type != html.ElementNode {
			return "", false
		}
		for _, frag := range s.Fragments(anc) {
			path := frag + " " + tag
			matches, err := css.MatchAll(root, path)
			if err == nil && len(matches) == 1 && matches[0] == el {
				return path, true
			}
		}
	}
	return "", false
}

// rank drops candidates that fail to parse or miss el, dedupes and orders by tier.
func (s *Synthesizer) rank(root, el *html.Node, raw []string) []Candidate {
	seen := make(map[string]bool, len(raw))
	ranked := make([]Candidate, 0, len(raw))
	for _, sel := range raw {
		if seen[sel] {
			continue
		}
		seen[sel] = true

		matches, err := css.MatchAll(root, sel)
		if err != nil || !slices.Contains(matches, el) {
			continue
		}
		ranked = append(ranked, Candidate{Selector: sel, Tier: s.scorer.Score(sel)})
	}

	slices.SortStableFunc(ranked, func(a, b Candidate) int { return a.Tier - b.Tier })
	return ranked
}

func element(n *html.Node) *html.Node {
	for n != nil && n.Type != html.ElementNode {
		n = n.Parent
	}
	return n
}

func tagName(el *html.Node) string {
	return EscapeIdent(strings.ToLower(el.Data))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}
