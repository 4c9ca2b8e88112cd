package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/metrics"
)

// Delivery errors.
var (
	ErrNoReceiver      = errors.New("no receiver attached")
	ErrAlreadyAttached = errors.New("origin already attached")
	ErrTimeout         = errors.New("request timed out")
	ErrQueueFull       = errors.New("receiver queue full")
	ErrNotRequest      = errors.New("kind does not expect a response")
)

// DefaultRequestTimeout bounds Request when the bus has no configured timeout.
const DefaultRequestTimeout = 5 * time.Second

const defaultQueueSize = 64

// Handler processes an envelope delivered to an attached context. For
// requests the returned payload, or error, becomes the response. For
// notifications both are ignored beyond logging.
type Handler func(ctx context.Context, env Envelope) (any, error)

// Bus delivers envelopes between attached contexts. Each attached context
// receives its envelopes one at a time in arrival order.
type Bus struct {
	log       logger.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	perKind   map[Kind]time.Duration
	queueSize int

	mu        sync.RWMutex
	endpoints map[Origin]*endpoint
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithRequestTimeout bounds every Request.
func WithRequestTimeout(d time.Duration) BusOption {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithKindTimeout bounds requests of kind by d instead of the bus timeout.
func WithKindTimeout(kind Kind, d time.Duration) BusOption {
	return func(b *Bus) {
		if d > 0 {
			b.perKind[kind] = d
		}
	}
}

// WithQueueSize sets the per-context inbound queue length.
func WithQueueSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithBusMetrics counts routed envelopes on m.
func WithBusMetrics(m *metrics.Metrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// NewBus returns a bus with no attached contexts.
func NewBus(log logger.Logger, opts ...BusOption) *Bus {
	b := &Bus{
		log:       log.With(logger.String("component", "bus")),
		timeout:   DefaultRequestTimeout,
		perKind:   make(map[Kind]time.Duration),
		queueSize: defaultQueueSize,
		endpoints: make(map[Origin]*endpoint),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type delivery struct {
	ctx   context.Context
	env   Envelope
	reply chan Envelope
}

type endpoint struct {
	origin  Origin
	handler Handler
	queue   chan delivery
	done    chan struct{}
	stopped chan struct{}
}

// Attach registers h as the receiver for origin and starts its worker. The
// returned func detaches it and waits for the worker to exit.
func (b *Bus) Attach(origin Origin, h Handler) (func(), error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrigin, origin)
	}

	ep := &endpoint{
		origin:  origin,
		handler: h,
		queue:   make(chan delivery, b.queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	b.mu.Lock()
	if _, exists := b.endpoints[origin]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAttached, origin)
	}
	b.endpoints[origin] = ep
	b.mu.Unlock()

	go b.work(ep)
	b.log.Debug("Context attached", logger.String("origin", string(origin)))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.endpoints[origin] == ep {
				delete(b.endpoints, origin)
			}
			b.mu.Unlock()
			close(ep.done)
			<-ep.stopped
			b.log.Debug("Context detached", logger.String("origin", string(origin)))
		})
	}, nil
}

// Attached reports whether origin has a receiver.
func (b *Bus) Attached(origin Origin) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.endpoints[origin]
	return ok
}

// Send delivers a notification without waiting for it to be handled.
func (b *Bus) Send(ctx context.Context, env Envelope) error {
	env, ep, err := b.prepare(env)
	if err != nil {
		b.metrics.ObserveMessage(string(env.Kind), false)
		return err
	}
	err = b.enqueue(ctx, ep, delivery{ctx: context.WithoutCancel(ctx), env: env}, b.timeout)
	b.metrics.ObserveMessage(string(env.Kind), err == nil)
	return err
}

// Request delivers env and waits for its response, the bus timeout, or ctx.
func (b *Bus) Request(ctx context.Context, env Envelope) (Envelope, error) {
	if !env.Kind.IsRequest() {
		return Envelope{}, fmt.Errorf("%w: %s", ErrNotRequest, env.Kind)
	}
	env, ep, err := b.prepare(env)
	if err != nil {
		b.metrics.ObserveMessage(string(env.Kind), false)
		return Envelope{}, err
	}

	timeout := b.TimeoutFor(env.Kind)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := delivery{ctx: ctx, env: env, reply: make(chan Envelope, 1)}
	if err = b.enqueue(ctx, ep, d, timeout); err != nil {
		b.metrics.ObserveMessage(string(env.Kind), false)
		return Envelope{}, err
	}

	select {
	case resp := <-d.reply:
		b.metrics.ObserveMessage(string(env.Kind), resp.Error == "")
		return resp, nil
	case <-ep.done:
		err = fmt.Errorf("%w: %s detached", ErrNoReceiver, ep.origin)
	case <-ctx.Done():
		err = ctxError(ctx, timeout)
	}
	b.metrics.ObserveMessage(string(env.Kind), false)
	return Envelope{}, err
}

// TimeoutFor returns how long a request of kind may wait for its response.
func (b *Bus) TimeoutFor(kind Kind) time.Duration {
	if d, ok := b.perKind[kind]; ok {
		return d
	}
	return b.timeout
}

func (b *Bus) prepare(env Envelope) (Envelope, *endpoint, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	dest, err := Route(env)
	if err != nil {
		return env, nil, err
	}
	env.Target = dest

	b.mu.RLock()
	ep, ok := b.endpoints[dest]
	b.mu.RUnlock()
	if !ok {
		return env, nil, fmt.Errorf("%w: %s", ErrNoReceiver, dest)
	}
	return env, ep, nil
}

func (b *Bus) enqueue(ctx context.Context, ep *endpoint, d delivery, timeout time.Duration) error {
	select {
	case <-ep.done:
		return fmt.Errorf("%w: %s", ErrNoReceiver, ep.origin)
	default:
	}

	select {
	case ep.queue <- d:
		return nil
	case <-ep.done:
		return fmt.Errorf("%w: %s", ErrNoReceiver, ep.origin)
	case <-ctx.Done():
		return ctxError(ctx, timeout)
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, ep.origin)
	}
}

func (b *Bus) work(ep *endpoint) {
	defer close(ep.stopped)

	for {
		select {
		case d := <-ep.queue:
			b.handle(ep, d)
		case <-ep.done:
			return
		}
	}
}

func (b *Bus) handle(ep *endpoint, d delivery) {
	if d.reply != nil && d.ctx.Err() != nil {
		return
	}

	payload, err := b.invoke(ep, d)
	if err != nil {
		b.log.Warn("Handler failed",
			logger.String("origin", string(ep.origin)),
			logger.String("kind", string(d.env.Kind)),
			logger.String("id", d.env.ID),
			logger.Error(err),
		)
	}
	if d.reply != nil {
		d.reply <- reply(d.env, ep.origin, payload, err)
	}
}

func (b *Bus) invoke(ep *endpoint, d delivery) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return ep.handler(d.ctx, d.env)
}

func ctxError(ctx context.Context, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return ctx.Err()
}
