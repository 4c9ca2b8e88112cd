package selector

import (
	"regexp"
	"strings"
)

// Predicates are the heuristics deciding which ids, classes and attributes are
// too volatile to anchor a selector on. Zero-valued fields fall back to the
// defaults.
type Predicates struct {
	// AutoID reports framework-generated ids.
	AutoID func(id string) bool
	// UnstableClass reports hashed CSS-in-JS class names.
	UnstableClass func(class string) bool
	// InternalAttr reports framework bookkeeping data-* attributes.
	InternalAttr func(name string) bool
}

var (
	autoIDPatterns = []*regexp.Regexp{
		// component library prefixes followed by a digit: ember123, mui-4, radix-7, react-select-3-input
		regexp.MustCompile(`(?i)^(?:ember|react-?(?:select-)?|mui-?|radix-?|headlessui-[a-z]+-|rc[-_](?:[a-z]+[-_])?|downshift-|yui_|ext-gen|gwt-uid-|j_id|ng-|vue-|svelte-)\d`),
		// uuid prefix
		regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-`),
		// React useId forms: :r1:, :R2ab:, «r3»
		regexp.MustCompile(`^(?::[a-zA-Z0-9]+:|«[a-zA-Z0-9]+»)$`),
	}

	unstableClassPatterns = []*regexp.Regexp{
		// emotion, styled-components, styled-jsx and friends: css-1x2y3z, sc-bdVaJa, jsx-123456
		regexp.MustCompile(`^(?:css|sc|jsx|emotion|styled|svelte)-[a-zA-Z0-9_]{4,}$`),
		// CSS modules: Button_root__3xYz9, styles-module__title___a1b2c
		regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*_{1,2}[A-Za-z0-9-]+_{2,3}[A-Za-z0-9_-]{4,}$`),
		// makeStyles / JSS: makeStyles-root-12, jss123
		regexp.MustCompile(`^(?:makeStyles-[a-zA-Z]+-\d+|jss\d+)$`),
		// short camelCase hash with digits: bdVaJa1, kXzPq3
		regexp.MustCompile(`^[a-z]{1,4}[A-Z][a-zA-Z]*[0-9][a-zA-Z0-9]*$`),
	}

	internalAttrPrefixes = []string{
		"data-reactid", "data-reactroot", "data-react-", "data-v-",
		"data-styled", "data-emotion", "data-n-head", "data-server-rendered",
		"data-hydrated", "data-gtm-", "data-crawl-selector",
	}
)

// DefaultPredicates returns the built-in heuristics.
func DefaultPredicates() Predicates {
	return Predicates{
		AutoID:        IsAutoID,
		UnstableClass: IsUnstableClass,
		InternalAttr:  IsInternalAttr,
	}
}

func (p Predicates) withDefaults() Predicates {
	if p.AutoID == nil {
		p.AutoID = IsAutoID
	}
	if p.UnstableClass == nil {
		p.UnstableClass = IsUnstableClass
	}
	if p.InternalAttr == nil {
		p.InternalAttr = IsInternalAttr
	}
	return p
}

// IsAutoID reports whether id looks generated.
func IsAutoID(id string) bool {
	return matchesAny(autoIDPatterns, id)
}

// IsUnstableClass reports whether class looks like a build-time hash.
func IsUnstableClass(class string) bool {
	return matchesAny(unstableClassPatterns, class)
}

// IsInternalAttr reports data-* attributes owned by frameworks or by the picker overlay.
func IsInternalAttr(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range internalAttrPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
