package sse

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var clientSeq atomic.Int64

type client struct {
	id     string
	events chan Event
	filter Filter
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newClient(ctx context.Context, bufferSize int, filter Filter) *client {
	ctx, cancel := context.WithCancel(ctx)
	return &client{
		id:     fmt.Sprintf("sse-%d", clientSeq.Add(1)),
		events: make(chan Event, bufferSize),
		filter: filter,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.events)
}

// send delivers event without blocking. It returns false when the client's
// buffer is full.
func (c *client) send(event Event) bool {
	if c.filter != nil && !c.filter(event) {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}
