package messaging_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/messaging"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/sse"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeEditor struct {
	mu    sync.Mutex
	picks []recipe.Pick
	res   recipe.PickResult
	err   error
}

func (e *fakeEditor) HandlePick(_ context.Context, p recipe.Pick) (recipe.PickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.picks = append(e.picks, p)
	return e.res, e.err
}

func TestContentHandler_PickerCommands(t *testing.T) {
	t.Parallel()

	page := &fakePage{}
	h := messaging.ContentHandler(page)

	_, err := h(context.Background(), messaging.Envelope{Kind: messaging.KindActivatePicker})
	require.NoError(t, err)
	_, err = h(context.Background(), messaging.Envelope{Kind: messaging.KindDeactivatePicker})
	require.NoError(t, err)
	assert.Equal(t, 1, page.activated)
	assert.Equal(t, 1, page.deactivated)

	_, err = h(context.Background(), messaging.Envelope{Kind: messaging.KindElementPicked})
	require.ErrorIs(t, err, messaging.ErrUnknownKind)
}

func TestContentHandler_BadPayload(t *testing.T) {
	t.Parallel()

	_, err := messaging.ContentHandler(&fakePage{})(context.Background(), messaging.Envelope{Kind: messaging.KindExtractField, Payload: []byte(`{`)})
	require.Error(t, err)
}

func TestPanelHandler_Pick(t *testing.T) {
	t.Parallel()

	field := recipe.SelectorField{ID: "f1", FieldName: "field_1", Selector: "h1"}
	editor := &fakeEditor{res: recipe.PickResult{Outcome: recipe.OutcomeAdded, Field: &field}}
	events := &recordingPublisher{}
	h := messaging.PanelHandler(editor, events, logger.NewNop())

	env, err := messaging.New(messaging.OriginContent, messaging.KindElementPicked, messaging.ElementPicked{
		Selector:     "h1",
		Alternatives: []string{"body > h1"},
		Attributes:   map[string]string{"class": "title"},
	})
	require.NoError(t, err)
	_, err = h(context.Background(), env)
	require.NoError(t, err)

	require.Len(t, editor.picks, 1)
	assert.Equal(t, "h1", editor.picks[0].Selector)
	assert.Equal(t, []string{"body > h1"}, editor.picks[0].Alternatives)
	assert.Equal(t, []string{sse.EventElementPicked, sse.EventFieldAdded}, events.types())
}

func TestPanelHandler_Duplicate(t *testing.T) {
	t.Parallel()

	editor := &fakeEditor{res: recipe.PickResult{Outcome: recipe.OutcomeDuplicate, Pending: &recipe.PendingDuplicate{Selector: "h1"}}}
	events := &recordingPublisher{}
	h := messaging.PanelHandler(editor, events, logger.NewNop())

	env, err := messaging.New(messaging.OriginContent, messaging.KindElementPicked, messaging.ElementPicked{Selector: "h1"})
	require.NoError(t, err)
	_, err = h(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, []string{sse.EventElementPicked, sse.EventDuplicatePending}, events.types())
}

func TestPanelHandler_EditorError(t *testing.T) {
	t.Parallel()

	editor := &fakeEditor{err: recipe.ErrNoActiveRecipe}
	h := messaging.PanelHandler(editor, &recordingPublisher{}, logger.NewNop())

	env, err := messaging.New(messaging.OriginContent, messaging.KindElementPicked, messaging.ElementPicked{Selector: "h1"})
	require.NoError(t, err)
	_, err = h(context.Background(), env)
	require.ErrorIs(t, err, recipe.ErrNoActiveRecipe)
}

func TestNotifier_ReachesPanel(t *testing.T) {
	t.Parallel()

	bus := messaging.NewBus(logger.NewNop())
	events := &recordingPublisher{}
	attach(t, bus, messaging.OriginPanel, messaging.PanelHandler(&fakeEditor{res: recipe.PickResult{Outcome: recipe.OutcomeAdded}}, events, logger.NewNop()))

	n := messaging.NewNotifier(bus, logger.NewNop())
	n.Hovered(messaging.ElementHovered{Selector: "h1", MatchCount: 1, TagName: "h1"})
	n.Picked(messaging.ElementPicked{Selector: "h1"})
	n.Deactivated()

	require.Eventually(t, func() bool { return len(events.types()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		sse.EventElementHovered,
		sse.EventElementPicked,
		sse.EventFieldAdded,
		sse.EventPickerDeactivated,
	}, events.types())
}

func TestNotifier_NoPanelIsSilent(t *testing.T) {
	t.Parallel()

	n := messaging.NewNotifier(messaging.NewBus(logger.NewNop()), logger.NewNop())
	assert.NotPanics(t, func() { n.Picked(messaging.ElementPicked{Selector: "h1"}) })
}
