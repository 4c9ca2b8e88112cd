// Package picker implements the interactive element picking session: hover
// highlighting with a live selector preview, click-to-pick and Escape to
// leave picking mode.
package picker

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/tmdgusya/crawl-selector/internal/extract"
	"github.com/tmdgusya/crawl-selector/internal/messaging"
	"github.com/tmdgusya/crawl-selector/internal/selector"
)

// Defaults.
const (
	DefaultHoverDebounce = 100 * time.Millisecond
	DefaultPreviewLimit  = 10
)

// KeyEscape leaves picking mode.
const KeyEscape = "Escape"

// State is the picker's mode.
type State int

// Modes.
const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

// Sink receives picker notifications.
type Sink interface {
	Hovered(messaging.ElementHovered)
	Picked(messaging.ElementPicked)
	Deactivated()
}

// Picker is the element picking state machine. It is not safe for concurrent
// use: every method, and every callback it schedules, runs on one event loop.
type Picker struct {
	root         *goquery.Selection
	synth        *selector.Synthesizer
	sink         Sink
	sched        Scheduler
	surface      Surface
	debounce     time.Duration
	previewLimit int

	state       State
	quick       *selector.QuickCache
	lastHovered *html.Node
	pendingMove *html.Node
	cancelFrame func()
	cancelHover func()
}

// Option configures a Picker.
type Option func(*Picker)

// WithSynthesizer replaces the default synthesizer.
func WithSynthesizer(s *selector.Synthesizer) Option {
	return func(p *Picker) {
		if s != nil {
			p.synth = s
		}
	}
}

// WithHoverDebounce sets the hover notification window.
func WithHoverDebounce(d time.Duration) Option {
	return func(p *Picker) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// WithPreviewLimit caps preview samples.
func WithPreviewLimit(n int) Option {
	return func(p *Picker) {
		if n > 0 {
			p.previewLimit = n
		}
	}
}

// New returns an inactive picker over doc.
func New(doc *goquery.Document, sink Sink, sched Scheduler, surface Surface, opts ...Option) *Picker {
	p := &Picker{
		root:         doc.Selection,
		synth:        selector.NewSynthesizer(),
		sink:         sink,
		sched:        sched,
		surface:      surface,
		debounce:     DefaultHoverDebounce,
		previewLimit: DefaultPreviewLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current mode.
func (p *Picker) State() State { return p.state }

// Activate enters picking mode with a fresh quick-selector cache.
func (p *Picker) Activate() {
	if p.state == Active {
		return
	}
	p.state = Active
	p.quick = selector.NewQuickCache(p.synth)
	p.surface.SetCursor(true)
}

// Deactivate leaves picking mode, dropping scheduled work, the cache and all
// overlays. It is a no-op when inactive.
func (p *Picker) Deactivate() {
	if p.state == Inactive {
		return
	}
	p.state = Inactive

	p.cancelPendingHover()
	if p.cancelFrame != nil {
		p.cancelFrame()
		p.cancelFrame = nil
	}
	if p.quick != nil {
		p.quick.Discard()
		p.quick = nil
	}
	p.surface.SetCursor(false)
	p.surface.Clear()
	p.lastHovered = nil
	p.pendingMove = nil
}

// PointerMove records the element under the pointer. Moves are processed at
// most once per frame; only the latest target of a frame is considered.
func (p *Picker) PointerMove(target *html.Node) {
	if p.state != Active {
		return
	}
	p.pendingMove = target
	if p.cancelFrame == nil {
		p.cancelFrame = p.sched.RequestFrame(p.processMove)
	}
}

func (p *Picker) processMove() {
	p.cancelFrame = nil
	target := p.pendingMove
	p.pendingMove = nil
	if p.state != Active {
		return
	}

	el := elementOf(target)
	if el == nil || el == p.lastHovered {
		return
	}
	p.lastHovered = el

	q := p.quick.Lookup(el)
	preview := extract.Preview(p.root, q.Selector, p.previewLimit)

	p.surface.Highlight(el)
	p.surface.ShowTooltip(el, Tooltip{Selector: q.Selector, MatchCount: q.MatchCount, Preview: preview})

	ev := messaging.ElementHovered{
		Selector:    q.Selector,
		MatchCount:  q.MatchCount,
		TagName:     strings.ToLower(el.Data),
		PreviewData: preview,
	}
	p.cancelPendingHover()
	p.cancelHover = p.sched.AfterFunc(p.debounce, func() {
		p.cancelHover = nil
		p.sink.Hovered(ev)
	})
}

// Click picks target. It reports whether the click was consumed, in which
// case the page's default action must be suppressed.
func (p *Picker) Click(target *html.Node) bool {
	if p.state != Active {
		return false
	}
	p.cancelPendingHover()

	el := elementOf(target)
	if el == nil {
		return true
	}

	res := p.synth.Synthesize(el)
	if res.Best == "" {
		return true
	}

	ev := messaging.ElementPicked{
		Selector:     res.Best,
		Alternatives: res.Alternatives,
		Attributes:   snapshot(el),
		PreviewData:  extract.Preview(p.root, res.Best, p.previewLimit),
	}
	p.surface.Pulse(el)
	p.sink.Picked(ev)
	return true
}

// KeyDown handles a key press. Escape deactivates and notifies. It reports
// whether the key was consumed.
func (p *Picker) KeyDown(key string) bool {
	if p.state != Active || key != KeyEscape {
		return false
	}
	p.Deactivate()
	p.sink.Deactivated()
	return true
}

func (p *Picker) cancelPendingHover() {
	if p.cancelHover != nil {
		p.cancelHover()
		p.cancelHover = nil
	}
}

func snapshot(el *html.Node) map[string]string {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if a.Namespace != "" {
			continue
		}
		attrs[a.Key] = a.Val
	}
	return attrs
}

func elementOf(n *html.Node) *html.Node {
	for n != nil && n.Type != html.ElementNode {
		n = n.Parent
	}
	return n
}
