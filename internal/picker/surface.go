package picker

import (
	"slices"

	"golang.org/x/net/html"
)

// Mark is a visual affordance the picker draws on an element.
type Mark string

// Marks.
const (
	MarkActive Mark = "active"
	MarkHover  Mark = "hover"
	MarkPicked Mark = "picked"
)

// Tooltip is the content shown next to the hovered element.
type Tooltip struct {
	Selector   string   `json:"selector"`
	MatchCount int      `json:"matchCount"`
	Preview    []string `json:"preview,omitempty"`
}

// Surface draws the picker's visual affordances.
type Surface interface {
	SetCursor(active bool)
	Highlight(el *html.Node)
	ShowTooltip(el *html.Node, tip Tooltip)
	Pulse(el *html.Node)
	Clear()
}

// OverlaySurface keeps overlay state beside the document, keyed by node.
// The document is never written to, so extraction on a live page sees the
// same markup as a detached copy.
type OverlaySurface struct {
	root    *html.Node
	marks   map[*html.Node][]Mark
	anchor  *html.Node
	tooltip *Tooltip
}

// NewOverlaySurface draws over the tree rooted at root.
func NewOverlaySurface(root *html.Node) *OverlaySurface {
	return &OverlaySurface{root: root, marks: make(map[*html.Node][]Mark)}
}

// SetCursor marks the document element while picking.
func (s *OverlaySurface) SetCursor(active bool) {
	doc := documentElement(s.root)
	if doc == nil {
		return
	}
	if active {
		s.mark(doc, MarkActive)
	} else {
		s.unmark(doc, MarkActive)
	}
}

// Highlight moves the hover mark to el.
func (s *OverlaySurface) Highlight(el *html.Node) {
	s.unmarkAll(MarkHover)
	s.mark(el, MarkHover)
}

// ShowTooltip records tip anchored at el.
func (s *OverlaySurface) ShowTooltip(el *html.Node, tip Tooltip) {
	t := tip
	t.Preview = slices.Clone(tip.Preview)
	s.anchor = el
	s.tooltip = &t
}

// Pulse marks el as picked.
func (s *OverlaySurface) Pulse(el *html.Node) {
	s.unmarkAll(MarkPicked)
	s.mark(el, MarkPicked)
}

// Clear removes every mark and the tooltip.
func (s *OverlaySurface) Clear() {
	clear(s.marks)
	s.anchor = nil
	s.tooltip = nil
}

// Has reports whether n carries m.
func (s *OverlaySurface) Has(n *html.Node, m Mark) bool {
	return slices.Contains(s.marks[n], m)
}

// Len returns the number of marks drawn.
func (s *OverlaySurface) Len() int {
	n := 0
	for _, ms := range s.marks {
		n += len(ms)
	}
	return n
}

// Tooltip returns the tooltip currently shown, if any.
func (s *OverlaySurface) Tooltip() (Tooltip, bool) {
	if s.tooltip == nil {
		return Tooltip{}, false
	}
	return *s.tooltip, true
}

// TooltipAnchor returns the element the tooltip is attached to.
func (s *OverlaySurface) TooltipAnchor() *html.Node {
	return s.anchor
}

func (s *OverlaySurface) mark(n *html.Node, m Mark) {
	if n == nil || s.Has(n, m) {
		return
	}
	s.marks[n] = append(s.marks[n], m)
}

func (s *OverlaySurface) unmark(n *html.Node, m Mark) {
	ms := slices.DeleteFunc(s.marks[n], func(x Mark) bool { return x == m })
	if len(ms) == 0 {
		delete(s.marks, n)
		return
	}
	s.marks[n] = ms
}

func (s *OverlaySurface) unmarkAll(m Mark) {
	for n := range s.marks {
		s.unmark(n, m)
	}
}

func documentElement(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}
