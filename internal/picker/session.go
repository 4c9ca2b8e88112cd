package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/tmdgusya/crawl-selector/internal/config"
	"github.com/tmdgusya/crawl-selector/internal/css"
	"github.com/tmdgusya/crawl-selector/internal/extract"
	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/selector"
)

// Session errors.
var (
	ErrNoPage    = errors.New("no page loaded")
	ErrNoElement = errors.New("no element matches target")
)

// Session owns one live document, its event loop and its picker. Methods
// may be called from any goroutine; work is serialized onto the loop.
type Session struct {
	URL string

	doc     *goquery.Document
	loop    *EventLoop
	picker  *Picker
	surface *OverlaySurface
}

// NewSession builds a session over doc with cfg's tuning. Call Start before use.
func NewSession(doc *goquery.Document, sink Sink, cfg config.PickerConfig) *Session {
	loop := NewEventLoop(cfg.FrameInterval)
	surface := NewOverlaySurface(doc.Get(0))
	synthOpts := []selector.Option{selector.WithAncestorDepth(cfg.AncestorDepth)}
	if cfg.MaxAlternatives > 0 {
		synthOpts = append(synthOpts, selector.WithMaxAlternatives(cfg.MaxAlternatives))
	}
	synth := selector.NewSynthesizer(synthOpts...)
	return &Session{
		doc:     doc,
		loop:    loop,
		surface: surface,
		picker: New(doc, sink, loop, surface,
			WithSynthesizer(synth),
			WithHoverDebounce(cfg.HoverDebounce),
			WithPreviewLimit(cfg.PreviewLimit),
		),
	}
}

// Start runs the event loop until ctx is done or Close is called.
func (s *Session) Start(ctx context.Context) {
	go s.loop.Run(ctx)
}

// Close deactivates the picker and stops the loop.
func (s *Session) Close() {
	_ = s.loop.Do(context.Background(), s.picker.Deactivate)
	s.loop.Stop()
	s.loop.Wait()
}

// ActivatePicker enters picking mode.
func (s *Session) ActivatePicker(ctx context.Context) error {
	return s.loop.Do(ctx, s.picker.Activate)
}

// DeactivatePicker leaves picking mode without notifying.
func (s *Session) DeactivatePicker(ctx context.Context) error {
	return s.loop.Do(ctx, s.picker.Deactivate)
}

// State returns the picker mode.
func (s *Session) State(ctx context.Context) (State, error) {
	var st State
	err := s.loop.Do(ctx, func() { st = s.picker.State() })
	return st, err
}

// Hover moves the pointer onto the first element matching target.
func (s *Session) Hover(ctx context.Context, target string) error {
	return s.onElement(ctx, target, s.picker.PointerMove)
}

// Click clicks the first element matching target.
func (s *Session) Click(ctx context.Context, target string) error {
	return s.onElement(ctx, target, func(n *html.Node) { s.picker.Click(n) })
}

// KeyDown presses key.
func (s *Session) KeyDown(ctx context.Context, key string) error {
	return s.loop.Do(ctx, func() { s.picker.KeyDown(key) })
}

// Tooltip returns the tooltip on screen.
func (s *Session) Tooltip(ctx context.Context) (Tooltip, bool, error) {
	var (
		tip Tooltip
		ok  bool
	)
	err := s.loop.Do(ctx, func() { tip, ok = s.surface.Tooltip() })
	return tip, ok, err
}

// ExtractField runs field against the live document.
func (s *Session) ExtractField(ctx context.Context, field recipe.SelectorField) (recipe.FieldTestResult, error) {
	var res recipe.FieldTestResult
	err := s.loop.Do(ctx, func() { res = extract.Extract(field, s.doc.Selection) })
	return res, err
}

// ExtractAllFields runs every field against the live document.
func (s *Session) ExtractAllFields(ctx context.Context, fields []recipe.SelectorField) (map[string]recipe.FieldTestResult, error) {
	var res map[string]recipe.FieldTestResult
	err := s.loop.Do(ctx, func() { res = extract.ExtractAll(fields, s.doc.Selection) })
	return res, err
}

func (s *Session) onElement(ctx context.Context, target string, fn func(*html.Node)) error {
	var findErr error
	err := s.loop.Do(ctx, func() {
		matches, err := css.Find(s.doc.Selection, target)
		if err != nil {
			findErr = err
			return
		}
		if matches.Length() == 0 {
			findErr = fmt.Errorf("%w: %q", ErrNoElement, target)
			return
		}
		fn(matches.Get(0))
	})
	if err != nil {
		return err
	}
	return findErr
}

// Host holds the current live page, replacing it on each Load.
type Host struct {
	sink Sink
	cfg  config.PickerConfig
	log  logger.Logger

	mu      sync.Mutex
	session *Session
}

// NewHost returns a host with no page loaded.
func NewHost(sink Sink, cfg config.PickerConfig, log logger.Logger) *Host {
	return &Host{sink: sink, cfg: cfg, log: log.With(logger.String("component", "picker"))}
}

// Load parses markup as the new live page for url, closing the previous one.
func (h *Host) Load(url string, markup io.Reader) (*Session, error) {
	doc, err := goquery.NewDocumentFromReader(markup)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	s := NewSession(doc, h.sink, h.cfg)
	s.URL = url
	s.Start(context.Background())

	h.mu.Lock()
	prev := h.session
	h.session = s
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	h.log.Info("Page loaded", logger.String("url", url))
	return s, nil
}

// Current returns the live page session.
func (h *Host) Current() (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return nil, ErrNoPage
	}
	return h.session, nil
}

// Close closes the live page, if any.
func (h *Host) Close() {
	h.mu.Lock()
	s := h.session
	h.session = nil
	h.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// ExtractField runs field against the live page.
func (h *Host) ExtractField(ctx context.Context, field recipe.SelectorField) (recipe.FieldTestResult, error) {
	s, err := h.Current()
	if err != nil {
		return recipe.FieldTestResult{}, err
	}
	return s.ExtractField(ctx, field)
}

// ExtractAllFields runs every field against the live page.
func (h *Host) ExtractAllFields(ctx context.Context, fields []recipe.SelectorField) (map[string]recipe.FieldTestResult, error) {
	s, err := h.Current()
	if err != nil {
		return nil, err
	}
	return s.ExtractAllFields(ctx, fields)
}

// ActivatePicker enters picking mode on the live page.
func (h *Host) ActivatePicker(ctx context.Context) error {
	s, err := h.Current()
	if err != nil {
		return err
	}
	return s.ActivatePicker(ctx)
}

// DeactivatePicker leaves picking mode on the live page.
func (h *Host) DeactivatePicker(ctx context.Context) error {
	s, err := h.Current()
	if err != nil {
		return err
	}
	return s.DeactivatePicker(ctx)
}
