// Package messaging carries request/response and fire-and-forget envelopes
// between the panel, content and background contexts.
package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

// Origin names an execution context.
type Origin string

// Contexts.
const (
	OriginPanel      Origin = "panel"
	OriginContent    Origin = "content"
	OriginBackground Origin = "background"
)

// Valid reports whether o is a known context.
func (o Origin) Valid() bool {
	switch o {
	case OriginPanel, OriginContent, OriginBackground:
		return true
	}
	return false
}

// Kind is the message type.
type Kind string

// Message kinds.
const (
	KindExtractField      Kind = "EXTRACT_FIELD"
	KindExtractAllFields  Kind = "EXTRACT_ALL_FIELDS"
	KindFetchAndExtract   Kind = "FETCH_AND_EXTRACT"
	KindActivatePicker    Kind = "ACTIVATE_PICKER"
	KindDeactivatePicker  Kind = "DEACTIVATE_PICKER"
	KindElementHovered    Kind = "ELEMENT_HOVERED"
	KindElementPicked     Kind = "ELEMENT_PICKED"
	KindPickerDeactivated Kind = "PICKER_DEACTIVATED"
)

// IsRequest reports whether k expects a response.
func (k Kind) IsRequest() bool {
	switch k {
	case KindExtractField, KindExtractAllFields, KindFetchAndExtract:
		return true
	}
	return false
}

// Envelope is the unit moved between contexts. A response has ReplyTo set to
// the request's ID and Target set to the requester.
type Envelope struct {
	ID      string          `json:"id"`
	Origin  Origin          `json:"origin"`
	Target  Origin          `json:"target,omitempty"`
	Kind    Kind            `json:"kind"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// IsReply reports whether e answers an earlier request.
func (e Envelope) IsReply() bool { return e.ReplyTo != "" }

// New builds an envelope with a fresh id and payload marshalled as JSON.
func New(origin Origin, kind Kind, payload any) (Envelope, error) {
	env := Envelope{ID: uuid.NewString(), Origin: origin, Kind: kind}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	env.Payload = raw
	return env, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Kind)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// reply builds the response to req sent from origin.
func reply(req Envelope, from Origin, payload any, handlerErr error) Envelope {
	resp := Envelope{
		ID:      uuid.NewString(),
		Origin:  from,
		Target:  req.Origin,
		Kind:    req.Kind,
		ReplyTo: req.ID,
	}
	if handlerErr != nil {
		resp.Error = handlerErr.Error()
		return resp
	}
	if payload == nil {
		return resp
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		resp.Error = fmt.Sprintf("marshal %s response: %v", req.Kind, err)
		return resp
	}
	resp.Payload = raw
	return resp
}

// ExtractFieldRequest is the EXTRACT_FIELD payload.
type ExtractFieldRequest struct {
	Field recipe.SelectorField `json:"field"`
}

// ExtractFieldResponse answers EXTRACT_FIELD.
type ExtractFieldResponse struct {
	Result recipe.FieldTestResult `json:"result"`
}

// ExtractAllFieldsRequest is the EXTRACT_ALL_FIELDS payload.
type ExtractAllFieldsRequest struct {
	Fields []recipe.SelectorField `json:"fields"`
}

// ExtractAllFieldsResponse answers EXTRACT_ALL_FIELDS.
type ExtractAllFieldsResponse struct {
	Results map[string]recipe.FieldTestResult `json:"results"`
}

// FetchAndExtractRequest is the FETCH_AND_EXTRACT payload.
type FetchAndExtractRequest struct {
	URL    string                 `json:"url"`
	Fields []recipe.SelectorField `json:"fields"`
}

// FetchAndExtractResponse answers FETCH_AND_EXTRACT with either results or an error.
type FetchAndExtractResponse struct {
	URL     string                            `json:"url"`
	Results map[string]recipe.FieldTestResult `json:"results,omitempty"`
	Error   string                            `json:"error,omitempty"`
}

// ElementHovered is the ELEMENT_HOVERED payload.
type ElementHovered struct {
	Selector    string   `json:"selector"`
	MatchCount  int      `json:"matchCount"`
	TagName     string   `json:"tagName"`
	PreviewData []string `json:"previewData,omitempty"`
}

// ElementPicked is the ELEMENT_PICKED payload.
type ElementPicked struct {
	Selector     string            `json:"selector"`
	Alternatives []string          `json:"alternatives"`
	Attributes   map[string]string `json:"attributes"`
	PreviewData  []string          `json:"previewData,omitempty"`
}

// Pick converts p into the editor's pick.
func (p ElementPicked) Pick() recipe.Pick {
	return recipe.Pick{
		Selector:     p.Selector,
		Alternatives: p.Alternatives,
		Attributes:   p.Attributes,
		PreviewData:  p.PreviewData,
	}
}
