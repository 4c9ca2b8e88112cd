package picker_test

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/tmdgusya/crawl-selector/internal/messaging"
	"github.com/tmdgusya/crawl-selector/internal/picker"
)

const page = `<html><body>
<main id="main">
  <article class="card" data-testid="card-1"><h2 class="title">First</h2><span class="price">$10</span></article>
  <article class="card" data-testid="card-2"><h2 class="title">Second</h2><span class="price">$20</span></article>
  <button>Buy</button>
</main>
</body></html>`

type scheduled struct {
	at       time.Duration
	fn       func()
	canceled bool
	fired    bool
}

// manualScheduler runs frames and timers only when the test says so.
type manualScheduler struct {
	now       time.Duration
	frames    []*scheduled
	timers    []*scheduled
	requested int
}

func (s *manualScheduler) RequestFrame(fn func()) func() {
	t := &scheduled{fn: fn}
	s.frames = append(s.frames, t)
	s.requested++
	return func() { t.canceled = true }
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) func() {
	t := &scheduled{at: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return func() { t.canceled = true }
}

func (s *manualScheduler) Frame() {
	frames := s.frames
	s.frames = nil
	for _, f := range frames {
		if !f.canceled {
			f.fn()
		}
	}
}

func (s *manualScheduler) Advance(d time.Duration) {
	s.now += d
	for _, t := range s.timers {
		if !t.canceled && !t.fired && t.at <= s.now {
			t.fired = true
			t.fn()
		}
	}
}

type recordingSink struct {
	hovered     []messaging.ElementHovered
	picked      []messaging.ElementPicked
	deactivated int
}

func (r *recordingSink) Hovered(e messaging.ElementHovered) { r.hovered = append(r.hovered, e) }
func (r *recordingSink) Picked(e messaging.ElementPicked)   { r.picked = append(r.picked, e) }
func (r *recordingSink) Deactivated()                       { r.deactivated++ }

type fixture struct {
	doc     *goquery.Document
	sched   *manualScheduler
	sink    *recordingSink
	surface *picker.OverlaySurface
	picker  *picker.Picker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	f := &fixture{
		doc:     doc,
		sched:   &manualScheduler{},
		sink:    &recordingSink{},
		surface: picker.NewOverlaySurface(doc.Get(0)),
	}
	f.picker = picker.New(doc, f.sink, f.sched, f.surface)
	return f
}

func (f *fixture) node(t *testing.T, sel string) *html.Node {
	t.Helper()
	s := f.doc.Find(sel)
	require.Positive(t, s.Length(), sel)
	return s.Get(0)
}

func TestPicker_ActivateDeactivate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Equal(t, picker.Inactive, f.picker.State())
	f.picker.Deactivate()

	f.picker.Activate()
	f.picker.Activate()
	assert.Equal(t, picker.Active, f.picker.State())
	assert.True(t, f.surface.Has(f.node(t, "html"), picker.MarkActive))

	f.picker.PointerMove(f.node(t, "button"))
	f.sched.Frame()
	require.Positive(t, f.surface.Len())

	f.picker.Deactivate()
	assert.Equal(t, picker.Inactive, f.picker.State())
	assert.Zero(t, f.surface.Len())
	_, ok := f.surface.Tooltip()
	assert.False(t, ok)

	f.picker.Deactivate()
	assert.Equal(t, picker.Inactive, f.picker.State())
}

func TestPicker_OverlayLeavesDocumentUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	before, err := f.doc.Html()
	require.NoError(t, err)

	f.picker.Activate()
	f.picker.PointerMove(f.node(t, "span.price"))
	f.sched.Frame()
	f.picker.Click(f.node(t, "h2.title"))
	require.Positive(t, f.surface.Len())
	assert.Equal(t, f.node(t, "span.price"), f.surface.TooltipAnchor())

	after, err := f.doc.Html()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Zero(t, f.doc.Find("[data-crawl-selector-hover]").Length())
}

func TestPicker_InactiveIgnoresInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.picker.PointerMove(f.node(t, "button"))
	assert.Zero(t, f.sched.requested)
	assert.False(t, f.picker.Click(f.node(t, "button")))
	assert.False(t, f.picker.KeyDown(picker.KeyEscape))
	assert.Empty(t, f.sink.picked)
	assert.Zero(t, f.sink.deactivated)
}

func TestPicker_CoalescesMovesPerFrame(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.picker.Activate()

	f.picker.PointerMove(f.node(t, "button"))
	f.picker.PointerMove(f.node(t, "span.price"))
	f.picker.PointerMove(f.node(t, "h2.title"))
	assert.Equal(t, 1, f.sched.requested)

	f.sched.Frame()
	assert.True(t, f.surface.Has(f.node(t, "h2.title"), picker.MarkHover))
	assert.False(t, f.surface.Has(f.node(t, "button"), picker.MarkHover))

	tip, ok := f.surface.Tooltip()
	require.True(t, ok)
	assert.Equal(t, "h2.title", tip.Selector)
	assert.Equal(t, 2, tip.MatchCount)
	assert.Equal(t, []string{"First", "Second"}, tip.Preview)
}

func TestPicker_SkipsSameElement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.picker.Activate()

	title := f.node(t, "h2.title")
	f.picker.PointerMove(title)
	f.sched.Frame()
	require.Len(t, f.sched.timers, 1)

	f.picker.PointerMove(title.FirstChild)
	f.sched.Frame()
	assert.Len(t, f.sched.timers, 1)
}

func TestPicker_DebouncesHover(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.picker.Activate()

	f.picker.PointerMove(f.node(t, "h2.title"))
	f.sched.Frame()
	f.sched.Advance(50 * time.Millisecond)
	assert.Empty(t, f.sink.hovered)

	f.picker.PointerMove(f.node(t, "button"))
	f.sched.Frame()
	f.sched.Advance(99 * time.Millisecond)
	assert.Empty(t, f.sink.hovered)

	f.sched.Advance(time.Millisecond)
	require.Len(t, f.sink.hovered, 1)
	assert.Equal(t, messaging.ElementHovered{Selector: "button", MatchCount: 1, TagName: "button", PreviewData: []string{"Buy"}}, f.sink.hovered[0])
}

func TestPicker_ClickSupersedesHover(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.picker.Activate()

	f.picker.PointerMove(f.node(t, "h2.title"))
	f.sched.Frame()
	assert.True(t, f.picker.Click(f.node(t, "h2.title")))
	require.Len(t, f.sink.picked, 1)

	f.sched.Advance(time.Second)
	assert.Empty(t, f.sink.hovered)
}

func TestPicker_PickPayload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.picker.Activate()

	title := f.node(t, "h2.title")
	f.picker.PointerMove(title)
	f.sched.Frame()
	f.picker.Click(title.FirstChild)

	require.Len(t, f.sink.picked, 1)
	got := f.sink.picked[0]
	assert.Equal(t, `[data-testid="card-1"] h2`, got.Selector)
	assert.Equal(t, []string{"h2.title"}, got.Alternatives)
	assert.Equal(t, map[string]string{"class": "title"}, got.Attributes)
	assert.Equal(t, []string{"First"}, got.PreviewData)
	assert.True(t, f.surface.Has(title, picker.MarkPicked))
	assert.Equal(t, picker.Active, f.picker.State())
}

func TestPicker_PickAnchoredOnAncestorID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.picker.Activate()

	f.picker.Click(f.node(t, "button"))
	require.Len(t, f.sink.picked, 1)
	assert.Equal(t, "#main button", f.sink.picked[0].Selector)
	assert.Empty(t, f.sink.picked[0].Alternatives)
}

func TestPicker_Escape(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.picker.Activate()

	assert.False(t, f.picker.KeyDown("Enter"))
	assert.Equal(t, picker.Active, f.picker.State())

	f.picker.PointerMove(f.node(t, "button"))
	f.sched.Frame()

	assert.True(t, f.picker.KeyDown(picker.KeyEscape))
	assert.Equal(t, picker.Inactive, f.picker.State())
	assert.Equal(t, 1, f.sink.deactivated)
	assert.Zero(t, f.surface.Len())

	f.sched.Advance(time.Second)
	assert.Empty(t, f.sink.hovered)
}

func TestPicker_DeactivateDropsPendingFrame(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.picker.Activate()

	f.picker.PointerMove(f.node(t, "button"))
	f.picker.Deactivate()
	f.sched.Frame()

	assert.Zero(t, f.surface.Len())
	assert.Empty(t, f.sched.timers)
}

func TestPicker_ReactivationStartsClean(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	button := f.node(t, "button")
	f.picker.Activate()
	f.picker.PointerMove(button)
	f.sched.Frame()
	f.picker.Deactivate()

	f.picker.Activate()
	f.picker.PointerMove(button)
	f.sched.Frame()
	assert.True(t, f.surface.Has(button, picker.MarkHover), "last hovered must reset on deactivation")
}
