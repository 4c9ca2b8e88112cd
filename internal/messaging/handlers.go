package messaging

import (
	"context"
	"fmt"

	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/sse"
)

// Page is the live document served by the content context.
type Page interface {
	ExtractField(ctx context.Context, field recipe.SelectorField) (recipe.FieldTestResult, error)
	ExtractAllFields(ctx context.Context, fields []recipe.SelectorField) (map[string]recipe.FieldTestResult, error)
	ActivatePicker(ctx context.Context) error
	DeactivatePicker(ctx context.Context) error
}

// PageFetcher fetches a detached document and extracts fields from it.
type PageFetcher interface {
	FetchAndExtract(ctx context.Context, url string, fields []recipe.SelectorField) (map[string]recipe.FieldTestResult, error)
}

// PickEditor applies picks to the active recipe.
type PickEditor interface {
	HandlePick(ctx context.Context, pick recipe.Pick) (recipe.PickResult, error)
}

// ContentHandler answers extraction requests and picker commands against page.
func ContentHandler(page Page) Handler {
	return func(ctx context.Context, env Envelope) (any, error) {
		switch env.Kind {
		case KindExtractField:
			var req ExtractFieldRequest
			if err := env.Decode(&req); err != nil {
				return nil, err
			}
			res, err := page.ExtractField(ctx, req.Field)
			if err != nil {
				return nil, err
			}
			return ExtractFieldResponse{Result: res}, nil
		case KindExtractAllFields:
			var req ExtractAllFieldsRequest
			if err := env.Decode(&req); err != nil {
				return nil, err
			}
			res, err := page.ExtractAllFields(ctx, req.Fields)
			if err != nil {
				return nil, err
			}
			return ExtractAllFieldsResponse{Results: res}, nil
		case KindActivatePicker:
			return nil, page.ActivatePicker(ctx)
		case KindDeactivatePicker:
			return nil, page.DeactivatePicker(ctx)
		default:
			return nil, fmt.Errorf("%w: content cannot handle %s", ErrUnknownKind, env.Kind)
		}
	}
}

// BackgroundHandler answers FETCH_AND_EXTRACT. Fetch failures are reported in
// the response body, not as handler errors.
func BackgroundHandler(f PageFetcher) Handler {
	return func(ctx context.Context, env Envelope) (any, error) {
		if env.Kind != KindFetchAndExtract {
			return nil, fmt.Errorf("%w: background cannot handle %s", ErrUnknownKind, env.Kind)
		}
		var req FetchAndExtractRequest
		if err := env.Decode(&req); err != nil {
			return nil, err
		}
		results, err := f.FetchAndExtract(ctx, req.URL, req.Fields)
		if err != nil {
			return FetchAndExtractResponse{URL: req.URL, Error: err.Error()}, nil
		}
		return FetchAndExtractResponse{URL: req.URL, Results: results}, nil
	}
}

// PanelHandler applies picked elements to the editor and republishes picker
// notifications to event stream subscribers.
func PanelHandler(editor PickEditor, events sse.Publisher, log logger.Logger) Handler {
	publish := func(ctx context.Context, typ string, data any) {
		if err := events.Publish(ctx, sse.Event{Type: typ, Data: data}); err != nil {
			log.Warn("Failed to publish event", logger.String("event_type", typ), logger.Error(err))
		}
	}

	return func(ctx context.Context, env Envelope) (any, error) {
		switch env.Kind {
		case KindElementHovered:
			var p ElementHovered
			if err := env.Decode(&p); err != nil {
				return nil, err
			}
			publish(ctx, sse.EventElementHovered, p)
		case KindElementPicked:
			var p ElementPicked
			if err := env.Decode(&p); err != nil {
				return nil, err
			}
			publish(ctx, sse.EventElementPicked, p)

			res, err := editor.HandlePick(ctx, p.Pick())
			if err != nil {
				return nil, fmt.Errorf("apply pick: %w", err)
			}
			switch res.Outcome {
			case recipe.OutcomeDuplicate:
				publish(ctx, sse.EventDuplicatePending, res.Pending)
			case recipe.OutcomeAdded:
				publish(ctx, sse.EventFieldAdded, res.Field)
			}
		case KindPickerDeactivated:
			publish(ctx, sse.EventPickerDeactivated, nil)
		default:
			return nil, fmt.Errorf("%w: panel cannot handle %s", ErrUnknownKind, env.Kind)
		}
		return nil, nil
	}
}

// Notifier sends picker notifications from the content context.
type Notifier struct {
	bus *Bus
	log logger.Logger
}

// NewNotifier returns a notifier sending on bus.
func NewNotifier(bus *Bus, log logger.Logger) *Notifier {
	return &Notifier{bus: bus, log: log}
}

// Hovered sends ELEMENT_HOVERED.
func (n *Notifier) Hovered(p ElementHovered) { n.send(KindElementHovered, p) }

// Picked sends ELEMENT_PICKED.
func (n *Notifier) Picked(p ElementPicked) { n.send(KindElementPicked, p) }

// Deactivated sends PICKER_DEACTIVATED.
func (n *Notifier) Deactivated() { n.send(KindPickerDeactivated, nil) }

func (n *Notifier) send(kind Kind, payload any) {
	env, err := New(OriginContent, kind, payload)
	if err == nil {
		err = n.bus.Send(context.Background(), env)
	}
	if err != nil {
		n.log.Debug("Notification not delivered", logger.String("kind", string(kind)), logger.Error(err))
	}
}
