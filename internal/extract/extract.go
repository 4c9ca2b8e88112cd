// Package extract resolves recipe fields against a parsed document. A detached
// document parsed from fetched bytes and the live picker document go through
// the same code path.
package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tmdgusya/crawl-selector/internal/css"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/transform"
)

// Extract resolves field within root. Failures are reported in the result,
// never as an error or panic.
func Extract(field recipe.SelectorField, root *goquery.Selection) recipe.FieldTestResult {
	scope := root
	if field.ListContainer != "" {
		containers, err := css.Find(root, field.ListContainer)
		if err != nil {
			return recipe.Failed(field, fmt.Sprintf("list container %q is not a valid selector: %v", field.ListContainer, err))
		}
		if containers.Length() == 0 {
			return recipe.Failed(field, fmt.Sprintf("list container %q matched no elements", field.ListContainer))
		}
		scope = containers.First()
	}

	var lastParseErr error
	selectors := field.Selectors()
	for _, sel := range selectors {
		matches, err := css.Find(scope, sel)
		if err != nil {
			lastParseErr = err
			continue
		}
		if matches.Length() == 0 {
			continue
		}
		if field.Multiple {
			return extractMany(field, sel, matches)
		}
		return extractOne(field, sel, matches.First())
	}

	if lastParseErr != nil {
		return recipe.Failed(field, lastParseErr.Error())
	}
	return recipe.Failed(field, noMatchMessage(selectors))
}

// ExtractAll extracts every field independently, keyed by field id.
func ExtractAll(fields []recipe.SelectorField, root *goquery.Selection) map[string]recipe.FieldTestResult {
	out := make(map[string]recipe.FieldTestResult, len(fields))
	for _, f := range fields {
		out[f.ID] = Extract(f, root)
	}
	return out
}

// Preview returns the trimmed text of at most limit elements matching sel.
// An invalid selector yields nil.
func Preview(root *goquery.Selection, sel string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	matches, err := css.Find(root, sel)
	if err != nil {
		return nil
	}
	out := make([]string, 0, min(limit, matches.Length()))
	matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		out = append(out, strings.TrimSpace(s.Text()))
		return true
	})
	return out
}

func extractMany(field recipe.SelectorField, sel string, matches *goquery.Selection) recipe.FieldTestResult {
	raw := make([]string, 0, matches.Length())
	transformed := make([]string, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		v := value(s, field.Extract)
		raw = append(raw, v)
		transformed = append(transformed, transform.Apply(v, field.Transforms))
	})

	return recipe.FieldTestResult{
		Success:      true,
		Raw:          recipe.List(raw),
		Transformed:  recipe.List(transformed),
		MatchCount:   len(raw),
		UsedSelector: sel,
		Timestamp:    time.Now().UnixMilli(),
	}
}

func extractOne(field recipe.SelectorField, sel string, match *goquery.Selection) recipe.FieldTestResult {
	v := value(match, field.Extract)
	return recipe.FieldTestResult{
		Success:      true,
		Raw:          recipe.Single(v),
		Transformed:  recipe.Single(transform.Apply(v, field.Transforms)),
		MatchCount:   1,
		UsedSelector: sel,
		Timestamp:    time.Now().UnixMilli(),
	}
}

func value(s *goquery.Selection, cfg recipe.ExtractConfig) string {
	switch cfg.Type {
	case recipe.ExtractHTML:
		inner, err := s.Html()
		if err != nil {
			return ""
		}
		return inner
	case recipe.ExtractAttribute:
		return s.AttrOr(cfg.Attribute, "")
	default:
		return s.Text()
	}
}

func noMatchMessage(selectors []string) string {
	if len(selectors) == 1 {
		return fmt.Sprintf("no element matched selector %q", selectors[0])
	}
	quoted := make([]string, len(selectors))
	for i, s := range selectors {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "no element matched any of " + strings.Join(quoted, ", ")
}
