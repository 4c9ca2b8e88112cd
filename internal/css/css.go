// Package css compiles CSS selectors with cascadia so that syntax errors are
// reported instead of silently matching nothing.
package css

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrEmptySelector is returned for a blank selector string.
var ErrEmptySelector = errors.New("empty selector")

// SyntaxError describes a selector that failed to parse.
type SyntaxError struct {
	Selector string
	Err      error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid selector %q: %v", e.Selector, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Compile parses sel into a matcher usable with goquery's FindMatcher.
func Compile(sel string) (cascadia.Selector, error) {
	if strings.TrimSpace(sel) == "" {
		return nil, &SyntaxError{Selector: sel, Err: ErrEmptySelector}
	}
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, &SyntaxError{Selector: sel, Err: err}
	}
	return m, nil
}

// Valid reports whether sel parses.
func Valid(sel string) bool {
	_, err := Compile(sel)
	return err == nil
}

// Find returns the descendants of scope matching sel.
func Find(scope *goquery.Selection, sel string) (*goquery.Selection, error) {
	m, err := Compile(sel)
	if err != nil {
		return nil, err
	}
	return scope.FindMatcher(m), nil
}

// MatchAll returns every node under root (root included) matching sel.
func MatchAll(root *html.Node, sel string) ([]*html.Node, error) {
	m, err := Compile(sel)
	if err != nil {
		return nil, err
	}
	return m.MatchAll(root), nil
}

// Root walks up from n to the top of its tree.
func Root(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}
