package sse

import "time"

// Option configures a broker.
type Option func(*broker)

// WithEventBufferSize sets the size of the publish queue.
func WithEventBufferSize(size int) Option {
	return func(b *broker) {
		if size > 0 {
			b.eventBufferSize = size
		}
	}
}

// WithClientBufferSize sets the default per-client buffer.
func WithClientBufferSize(size int) Option {
	return func(b *broker) {
		if size > 0 {
			b.clientBufferSize = size
		}
	}
}

// WithHeartbeatInterval sets how often idle streams receive a comment line.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(b *broker) {
		if interval > 0 {
			b.heartbeatInterval = interval
		}
	}
}

// WithMaxClients caps concurrent subscribers. Zero means unlimited.
func WithMaxClients(n int) Option {
	return func(b *broker) { b.maxClients = n }
}

// ClientOptions configures one subscription.
type ClientOptions struct {
	Filter     Filter
	BufferSize int
}

// ClientOption configures a subscription.
type ClientOption func(*ClientOptions)

// WithFilter only delivers events accepted by f.
func WithFilter(f Filter) ClientOption {
	return func(o *ClientOptions) { o.Filter = f }
}

// WithTypes only delivers events of the given types.
func WithTypes(types ...string) ClientOption {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return WithFilter(func(e Event) bool {
		_, ok := allowed[e.Type]
		return ok
	})
}
