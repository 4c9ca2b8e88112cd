package sse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmdgusya/crawl-selector/internal/logger"
)

type broker struct {
	log     logger.Logger
	clients map[string]*client
	mu      sync.RWMutex

	publish chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	eventBufferSize   int
	clientBufferSize  int
	heartbeatInterval time.Duration
	maxClients        int
}

// NewBroker returns a stopped broker. Call Start before publishing.
func NewBroker(log logger.Logger, opts ...Option) Broker {
	b := &broker{
		log:               log.With(logger.String("component", "sse")),
		clients:           make(map[string]*client),
		eventBufferSize:   DefaultEventBufferSize,
		clientBufferSize:  DefaultClientBufferSize,
		heartbeatInterval: DefaultHeartbeatInterval,
		maxClients:        DefaultMaxClients,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.publish = make(chan Event, b.eventBufferSize)
	return b
}

func (b *broker) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go b.loop()

	b.log.Info("SSE broker started",
		logger.Int("event_buffer_size", b.eventBufferSize),
		logger.Int("max_clients", b.maxClients),
	)
	return nil
}

func (b *broker) Stop() error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("SSE broker stopped")
	case <-time.After(DefaultShutdownTimeout):
		b.log.Warn("SSE broker shutdown timed out")
	}
	return nil
}

func (b *broker) Publish(ctx context.Context, event Event) error {
	select {
	case b.publish <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", event.Type, ctx.Err())
	default:
		return fmt.Errorf("publish buffer full, dropped %s", event.Type)
	}
}

func (b *broker) Subscribe(ctx context.Context, opts ...ClientOption) (<-chan Event, func()) {
	o := ClientOptions{BufferSize: b.clientBufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	b.mu.Lock()
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		b.mu.Unlock()
		b.log.Warn("Rejecting SSE subscriber, client limit reached", logger.Int("max_clients", b.maxClients))
		rejected := make(chan Event)
		close(rejected)
		return rejected, func() {}
	}
	c := newClient(ctx, o.BufferSize, o.Filter)
	b.clients[c.id] = c
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-c.ctx.Done()
		b.remove(c.id)
	}()

	return c.events, func() { b.remove(c.id) }
}

func (b *broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *broker) HeartbeatInterval() time.Duration { return b.heartbeatInterval }

func (b *broker) loop() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.publish:
			b.broadcast(event)
		case <-b.ctx.Done():
			b.disconnectAll()
			return
		}
	}
}

func (b *broker) broadcast(event Event) {
	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if !c.send(event) {
			b.log.Warn("Dropping slow SSE client",
				logger.String("client_id", c.id),
				logger.String("event_type", event.Type),
			)
			b.remove(c.id)
		}
	}
}

func (b *broker) remove(id string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	delete(b.clients, id)
	b.mu.Unlock()

	if ok {
		c.close()
	}
}

func (b *broker) disconnectAll() {
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*client)
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
