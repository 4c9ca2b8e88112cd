// Package transform implements the declarative string pipeline applied to
// every extracted value.
package transform

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates a Step.
type Kind string

// Supported step kinds.
const (
	KindTrim          Kind = "trim"
	KindStripHTML     Kind = "strip_html"
	KindExtractNumber Kind = "extract_number"
	KindRegex         Kind = "regex"
	KindReplace       Kind = "replace"
	KindDefault       Kind = "default"
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{KindTrim, KindStripHTML, KindExtractNumber, KindRegex, KindReplace, KindDefault}

// Valid reports whether k is a known step kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTrim, KindStripHTML, KindExtractNumber, KindRegex, KindReplace, KindDefault:
		return true
	}
	return false
}

// Step is one stage of the pipeline. Pattern is used by regex and replace,
// Replacement by replace and DefaultValue by default. A nil pointer means the
// option was omitted.
type Step struct {
	Type         Kind    `json:"type"`
	Pattern      string  `json:"pattern,omitempty"`
	Replacement  *string `json:"replacement,omitempty"`
	DefaultValue *string `json:"default_value,omitempty"`
}

// Trim returns a trim step.
func Trim() Step { return Step{Type: KindTrim} }

// StripHTML returns a strip_html step.
func StripHTML() Step { return Step{Type: KindStripHTML} }

// ExtractNumber returns an extract_number step.
func ExtractNumber() Step { return Step{Type: KindExtractNumber} }

// Regex returns a regex step for pattern.
func Regex(pattern string) Step { return Step{Type: KindRegex, Pattern: pattern} }

// Replace returns a replace step substituting every match of pattern.
func Replace(pattern, replacement string) Step {
	return Step{Type: KindReplace, Pattern: pattern, Replacement: &replacement}
}

// Default returns a default step.
func Default(value string) Step { return Step{Type: KindDefault, DefaultValue: &value} }

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	numberPattern = regexp.MustCompile(`[0-9.]+`)
)

// Apply folds steps over value from left to right.
func Apply(value string, steps []Step) string {
	for _, step := range steps {
		value = ApplyStep(value, step)
	}
	return value
}

// ApplyStep applies a single step. It never fails: malformed patterns and
// unknown kinds leave the value unchanged.
func ApplyStep(value string, step Step) string {
	switch step.Type {
	case KindTrim:
		return strings.TrimSpace(value)
	case KindStripHTML:
		return tagPattern.ReplaceAllString(value, "")
	case KindExtractNumber:
		return extractNumber(value)
	case KindRegex:
		return firstMatch(value, step.Pattern)
	case KindReplace:
		return replaceAll(value, step.Pattern, deref(step.Replacement))
	case KindDefault:
		if value == "" {
			return deref(step.DefaultValue)
		}
		return value
	default:
		return value
	}
}

// extractNumber concatenates every run of digits and dots, so
// "10개 중 3개" becomes "103".
func extractNumber(value string) string {
	runs := numberPattern.FindAllString(value, -1)
	joined := strings.Join(runs, "")
	if !strings.ContainsAny(joined, "0123456789") {
		return value
	}
	return joined
}

func firstMatch(value, pattern string) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value
	}
	loc := re.FindStringSubmatchIndex(value)
	if loc == nil {
		return value
	}
	// Group 1 wins when it took part in the match.
	if len(loc) >= 4 && loc[2] >= 0 {
		return value[loc[2]:loc[3]]
	}
	return value[loc[0]:loc[1]]
}

func replaceAll(value, pattern, replacement string) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value
	}
	return re.ReplaceAllString(value, expandTemplate(replacement, re.NumSubexp()))
}

// expandTemplate rewrites a replacement written with $1, $&, $$ and $<name>
// references into regexp's ${...} form. "$1x" is group 1 then "x", and $
// before anything else is literal.
func expandTemplate(repl string, groups int) string {
	if !strings.Contains(repl, "$") {
		return repl
	}
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '$' || i+1 == len(repl) {
			if c == '$' {
				b.WriteString("$$")
			} else {
				b.WriteByte(c)
			}
			continue
		}
		next := repl[i+1]
		switch {
		case next == '$':
			b.WriteString("$$")
			i++
		case next == '&':
			b.WriteString("${0}")
			i++
		case next == '<':
			end := strings.IndexByte(repl[i+2:], '>')
			if end < 0 {
				b.WriteString("$$")
				continue
			}
			b.WriteString("${" + repl[i+2:i+2+end] + "}")
			i += end + 2
		case isDigit(next):
			n, width := groupRef(repl[i+1:], groups)
			if n == 0 {
				b.WriteString("$$")
				continue
			}
			b.WriteString("${" + strconv.Itoa(n) + "}")
			i += width
		default:
			b.WriteString("$$")
		}
	}
	return b.String()
}

// groupRef reads a one or two digit group number, preferring two digits when
// that group exists. It returns 0 when no group is referenced.
func groupRef(s string, groups int) (n, width int) {
	if len(s) >= 2 && isDigit(s[1]) {
		if two := int(s[0]-'0')*10 + int(s[1]-'0'); two >= 1 && two <= groups {
			return two, 2
		}
	}
	if one := int(s[0] - '0'); one >= 1 && one <= groups {
		return one, 1
	}
	return 0, 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
