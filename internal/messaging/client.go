package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

// Requester sends a request and waits for its response.
type Requester interface {
	Request(ctx context.Context, env Envelope) (Envelope, error)
}

// Client issues requests on behalf of one context and never fails outright:
// transport problems come back as failed results carrying a readable message.
type Client struct {
	bus    Requester
	origin Origin
}

// NewClient returns a client sending as origin.
func NewClient(bus Requester, origin Origin) *Client {
	return &Client{bus: bus, origin: origin}
}

// ExtractField runs field against the live page.
func (c *Client) ExtractField(ctx context.Context, field recipe.SelectorField) recipe.FieldTestResult {
	var resp ExtractFieldResponse
	if err := c.call(ctx, KindExtractField, ExtractFieldRequest{Field: field}, &resp); err != nil {
		return recipe.Failed(field, pageUnavailable(err))
	}
	return resp.Result
}

// ExtractAllFields runs every field against the live page.
func (c *Client) ExtractAllFields(ctx context.Context, fields []recipe.SelectorField) map[string]recipe.FieldTestResult {
	var resp ExtractAllFieldsResponse
	if err := c.call(ctx, KindExtractAllFields, ExtractAllFieldsRequest{Fields: fields}, &resp); err != nil {
		return recipe.FailedAll(fields, pageUnavailable(err))
	}
	return resp.Results
}

// FetchAndExtract asks the background context to fetch url and extract fields from it.
func (c *Client) FetchAndExtract(ctx context.Context, url string, fields []recipe.SelectorField) FetchAndExtractResponse {
	var resp FetchAndExtractResponse
	if err := c.call(ctx, KindFetchAndExtract, FetchAndExtractRequest{URL: url, Fields: fields}, &resp); err != nil {
		return FetchAndExtractResponse{URL: url, Error: fmt.Sprintf("fetch service unavailable: %v", err)}
	}
	if resp.URL == "" {
		resp.URL = url
	}
	return resp
}

func (c *Client) call(ctx context.Context, kind Kind, payload, out any) error {
	env, err := New(c.origin, kind, payload)
	if err != nil {
		return err
	}
	resp, err := c.bus.Request(ctx, env)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return resp.Decode(out)
}

func pageUnavailable(err error) string {
	if errors.Is(err, ErrNoReceiver) {
		return "page is not connected, reload the page and try again"
	}
	return fmt.Sprintf("could not reach the page: %v", err)
}
