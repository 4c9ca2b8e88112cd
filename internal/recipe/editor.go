package recipe

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/tmdgusya/crawl-selector/internal/metrics"
	"github.com/tmdgusya/crawl-selector/internal/transform"
)

// Editor errors.
var (
	ErrEmptySelector = errors.New("selector must not be empty")
	ErrFieldNotFound = errors.New("field not found")
)

// Pick is a selection made with the picker.
type Pick struct {
	Selector     string            `json:"selector"`
	Alternatives []string          `json:"alternatives"`
	Attributes   map[string]string `json:"attributes"`
	PreviewData  []string          `json:"previewData,omitempty"`
}

// PickOutcome says what HandlePick did.
type PickOutcome string

// Pick outcomes.
const (
	OutcomeAdded     PickOutcome = "added"
	OutcomeDuplicate PickOutcome = "duplicate"
)

// PickResult reports the outcome of HandlePick.
type PickResult struct {
	Outcome PickOutcome       `json:"outcome"`
	Field   *SelectorField    `json:"field,omitempty"`
	Pending *PendingDuplicate `json:"pending,omitempty"`
}

// Editor applies field edits to the active recipe. At most one pending
// duplicate is held at a time.
type Editor struct {
	store   Store
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending *PendingDuplicate
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithEditorMetrics counts pick outcomes on m.
func WithEditorMetrics(m *metrics.Metrics) EditorOption {
	return func(e *Editor) { e.metrics = m }
}

// NewEditor returns an editor over store.
func NewEditor(store Store, opts ...EditorOption) *Editor {
	e := &Editor{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandlePick appends a field for pick to the active recipe, unless its
// selector equals an existing field's primary selector, in which case the pick
// becomes the pending duplicate.
func (e *Editor) HandlePick(ctx context.Context, pick Pick) (PickResult, error) {
	if pick.Selector == "" {
		return PickResult{}, ErrEmptySelector
	}

	active, err := Active(ctx, e.store)
	if err != nil {
		return PickResult{}, err
	}

	for _, f := range active.Fields {
		if f.Selector == pick.Selector {
			pending := &PendingDuplicate{
				Selector:        pick.Selector,
				Alternatives:    slices.Clone(pick.Alternatives),
				Attributes:      maps.Clone(pick.Attributes),
				RecipeID:        active.ID,
				ExistingFieldID: f.ID,
			}
			e.mu.Lock()
			e.pending = pending
			e.mu.Unlock()

			e.metrics.ObservePick(string(OutcomeDuplicate))
			p := *pending
			return PickResult{Outcome: OutcomeDuplicate, Pending: &p}, nil
		}
	}

	field, err := e.appendField(ctx, active.ID, pick.Selector)
	if err != nil {
		return PickResult{}, err
	}
	e.metrics.ObservePick(string(OutcomeAdded))
	return PickResult{Outcome: OutcomeAdded, Field: &field}, nil
}

// Pending returns a copy of the outstanding duplicate, if any.
func (e *Editor) Pending() (PendingDuplicate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return PendingDuplicate{}, false
	}
	return *e.pending, true
}

// ResolveDuplicate settles the pending duplicate against the recipe it was
// raised on, even if another recipe became active since. merge marks the
// existing field as multiple; otherwise a separate single-valued field with
// the same selector is appended. Without a pending duplicate it does nothing.
func (e *Editor) ResolveDuplicate(ctx context.Context, merge bool) error {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	if pending == nil {
		return nil
	}

	if !merge {
		_, err := e.appendField(ctx, pending.RecipeID, pending.Selector)
		return err
	}

	_, err := Update(ctx, e.store, pending.RecipeID, func(r *CrawlRecipe) error {
		i := r.FieldIndex(pending.ExistingFieldID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrFieldNotFound, pending.ExistingFieldID)
		}
		r.Fields[i].Multiple = true
		return nil
	})
	return err
}

// AddField appends f to the active recipe, assigning an id and a name if missing.
func (e *Editor) AddField(ctx context.Context, f SelectorField) (SelectorField, error) {
	if f.Selector == "" {
		return SelectorField{}, ErrEmptySelector
	}

	active, err := Active(ctx, e.store)
	if err != nil {
		return SelectorField{}, err
	}

	_, err = Update(ctx, e.store, active.ID, func(r *CrawlRecipe) error {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if f.FieldName == "" {
			f.FieldName = nextFieldName(r.Fields)
		}
		if f.Extract.Type == "" {
			f.Extract = Text()
		}
		if f.Transforms == nil {
			f.Transforms = []transform.Step{}
		}
		r.Fields = append(r.Fields, f)
		return nil
	})
	if err != nil {
		return SelectorField{}, err
	}
	return f, nil
}

// AddManualField appends a text field typed in by hand.
func (e *Editor) AddManualField(ctx context.Context, name, selector string) (SelectorField, error) {
	return e.AddField(ctx, SelectorField{FieldName: name, Selector: selector})
}

// UpdateField applies fn to the field with id in the active recipe.
func (e *Editor) UpdateField(ctx context.Context, id string, fn func(*SelectorField)) (SelectorField, error) {
	active, err := Active(ctx, e.store)
	if err != nil {
		return SelectorField{}, err
	}

	var updated SelectorField
	_, err = Update(ctx, e.store, active.ID, func(r *CrawlRecipe) error {
		i := r.FieldIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
		}
		fn(&r.Fields[i])
		if r.Fields[i].Selector == "" {
			return ErrEmptySelector
		}
		r.Fields[i].ID = id
		updated = r.Fields[i]
		return nil
	})
	return updated, err
}

// DeleteField removes the field with id from the active recipe.
func (e *Editor) DeleteField(ctx context.Context, id string) error {
	active, err := Active(ctx, e.store)
	if err != nil {
		return err
	}

	_, err = Update(ctx, e.store, active.ID, func(r *CrawlRecipe) error {
		i := r.FieldIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
		}
		r.Fields = slices.Delete(r.Fields, i, i+1)
		return nil
	})
	return err
}

func (e *Editor) appendField(ctx context.Context, recipeID, selector string) (SelectorField, error) {
	var field SelectorField
	_, err := Update(ctx, e.store, recipeID, func(r *CrawlRecipe) error {
		field = SelectorField{
			ID:         uuid.NewString(),
			FieldName:  nextFieldName(r.Fields),
			Selector:   selector,
			Extract:    Text(),
			Transforms: []transform.Step{},
		}
		r.Fields = append(r.Fields, field)
		return nil
	})
	return field, err
}

func nextFieldName(fields []SelectorField) string {
	taken := make(map[string]bool, len(fields))
	for _, f := range fields {
		taken[f.FieldName] = true
	}
	for n := len(fields) + 1; ; n++ {
		name := fmt.Sprintf("field_%d", n)
		if !taken[name] {
			return name
		}
	}
}
