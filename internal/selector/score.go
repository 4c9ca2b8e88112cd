// Package selector synthesizes durable CSS selectors for DOM elements and ranks
// them by how likely they are to survive markup changes.
package selector

import (
	"strings"
	"unicode/utf8"
)

// Robustness tiers, lower is more durable.
const (
	TierDataAttr   = 1
	TierID         = 2
	TierARIA       = 3
	TierClass      = 4
	TierHashClass  = 5
	TierStructural = 6
	TierTag        = 7
)

var tierReasons = map[int]string{
	TierDataAttr:   "data-* attribute",
	TierID:         "stable id",
	TierARIA:       "role or aria attribute",
	TierClass:      "class name",
	TierHashClass:  "generated class name",
	TierStructural: "structural position",
	TierTag:        "tag name only",
}

// Explanation is a tier with a short human readable reason.
type Explanation struct {
	Tier   int    `json:"tier"`
	Reason string `json:"reason"`
}

// Scorer ranks selector strings.
type Scorer struct {
	preds Predicates
}

// NewScorer returns a scorer using preds, with defaults for unset predicates.
func NewScorer(preds Predicates) *Scorer {
	return &Scorer{preds: preds.withDefaults()}
}

var defaultScorer = NewScorer(Predicates{})

// Score returns the tier of sel using the default predicates.
func Score(sel string) int {
	return defaultScorer.Score(sel)
}

// Explain returns the tier of sel and why, using the default predicates.
func Explain(sel string) Explanation {
	return defaultScorer.Explain(sel)
}

// Score returns the robustness tier of sel in [1,7]. Any string is accepted.
func (s *Scorer) Score(sel string) int {
	return s.tier(scan(sel))
}

// Explain is Score with a reason attached.
func (s *Scorer) Explain(sel string) Explanation {
	tier := s.tier(scan(sel))
	return Explanation{Tier: tier, Reason: tierReasons[tier]}
}

func (s *Scorer) tier(p predicates) int {
	for _, name := range p.attrs {
		if strings.HasPrefix(name, "data-") {
			return TierDataAttr
		}
	}
	for _, id := range p.ids {
		if !s.preds.AutoID(id) {
			return TierID
		}
	}
	for _, name := range p.attrs {
		if name == "role" || strings.HasPrefix(name, "aria-") {
			return TierARIA
		}
	}
	if len(p.classes) > 0 {
		for _, class := range p.classes {
			if s.preds.UnstableClass(class) {
				return TierHashClass
			}
		}
		return TierClass
	}
	if p.child || p.nthChild {
		return TierStructural
	}
	return TierTag
}

// predicates is the shallow structure the scorer cares about.
type predicates struct {
	attrs    []string
	ids      []string
	classes  []string
	child    bool
	nthChild bool
}

// scan walks sel without building a full AST. It tolerates malformed input.
func scan(sel string) predicates {
	var p predicates
	for i := 0; i < len(sel); {
		switch c := sel[i]; c {
		case '[':
			name, next := scanAttribute(sel, i+1)
			if name != "" {
				p.attrs = append(p.attrs, name)
			}
			i = next
		case '"', '\'':
			i = skipString(sel, i)
		case '#':
			id, next := scanIdent(sel, i+1)
			if id != "" {
				p.ids = append(p.ids, id)
			}
			i = next
		case '.':
			class, next := scanIdent(sel, i+1)
			if class != "" {
				p.classes = append(p.classes, class)
			}
			i = next
		case '>':
			p.child = true
			i++
		case ':':
			j := i + 1
			if j < len(sel) && sel[j] == ':' {
				j++
			}
			name, next := scanIdent(sel, j)
			if strings.EqualFold(name, "nth-child") {
				p.nthChild = true
			}
			i = next
		case '\\':
			i += 2
		default:
			i++
		}
	}
	return p
}

// scanAttribute reads the attribute name after '[' and returns the index after
// the closing ']'.
func scanAttribute(sel string, i int) (string, int) {
	for i < len(sel) && sel[i] == ' ' {
		i++
	}
	name, i := scanIdent(sel, i)
	for i < len(sel) && sel[i] != ']' {
		if sel[i] == '"' || sel[i] == '\'' {
			i = skipString(sel, i)
			continue
		}
		if sel[i] == '\\' {
			i++
		}
		i++
	}
	if i < len(sel) {
		i++
	}
	return strings.ToLower(name), i
}

func skipString(sel string, i int) int {
	quote := sel[i]
	for i++; i < len(sel); i++ {
		switch sel[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(sel)
}

// scanIdent reads a CSS identifier starting at i and returns it unescaped.
func scanIdent(sel string, i int) (string, int) {
	var b strings.Builder
	for i < len(sel) {
		c := sel[i]
		switch {
		case isIdentByte(c):
			b.WriteByte(c)
			i++
		case c == '\\' && i+1 < len(sel):
			r, next := unescape(sel, i+1)
			b.WriteRune(r)
			i = next
		default:
			return b.String(), i
		}
	}
	return b.String(), i
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func unescape(sel string, i int) (rune, int) {
	var code rune
	j := i
	for j < len(sel) && j-i < 6 && isHex(sel[j]) {
		code = code*16 + hexValue(sel[j])
		j++
	}
	if j == i {
		r, size := utf8.DecodeRuneInString(sel[i:])
		return r, i + size
	}
	if j < len(sel) && sel[j] == ' ' {
		j++
	}
	return code, j
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) rune {
	switch {
	case c >= '0' && c <= '9':
		return rune(c - '0')
	case c >= 'a' && c <= 'f':
		return rune(c-'a') + 10
	default:
		return rune(c-'A') + 10
	}
}
