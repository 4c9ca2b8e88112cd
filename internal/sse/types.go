// Package sse streams picker and recipe events to panel clients as
// Server-Sent Events.
package sse

import (
	"context"
	"time"
)

// Event is one Server-Sent Event, written as "event: <Type>\ndata: <JSON>\n\n".
type Event struct {
	Type  string `json:"type"`
	Data  any    `json:"data"`
	ID    string `json:"id,omitempty"`
	Retry int    `json:"retry,omitempty"`
}

// Publisher sends events to every subscriber.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Broker fans published events out to subscribed clients.
type Broker interface {
	Publisher

	// Subscribe returns the client's event channel, closed when the
	// subscription ends, and a cleanup func.
	Subscribe(ctx context.Context, opts ...ClientOption) (<-chan Event, func())
	Start(ctx context.Context) error
	Stop() error
	ClientCount() int
	HeartbeatInterval() time.Duration
}

// Filter reports whether a client receives event.
type Filter func(event Event) bool

// Picker and recipe event types.
const (
	EventElementHovered    = "element:hovered"
	EventElementPicked     = "element:picked"
	EventPickerDeactivated = "picker:deactivated"
	EventFieldAdded        = "recipe:field_added"
	EventDuplicatePending  = "recipe:duplicate_pending"
)

const (
	eventConnected = "connected"
)

// Defaults.
const (
	DefaultEventBufferSize   = 256
	DefaultClientBufferSize  = 64
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultMaxClients        = 100
)
