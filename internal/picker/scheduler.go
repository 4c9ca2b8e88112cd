package picker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopStopped is returned when work is submitted to a stopped loop.
var ErrLoopStopped = errors.New("event loop stopped")

// DefaultFrameInterval approximates one display frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler defers callbacks onto the picker's event loop. Callbacks never
// run after their cancel func has been called.
type Scheduler interface {
	RequestFrame(fn func()) (cancel func())
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// EventLoop runs posted tasks one at a time on a single goroutine, the way a
// page runs its event handlers. The picker and its document are only touched
// from inside the loop.
type EventLoop struct {
	frame time.Duration
	tasks chan func()

	stopOnce sync.Once
	stopped  chan struct{}
	exited   chan struct{}
}

// NewEventLoop returns a loop whose frames are frameInterval apart.
func NewEventLoop(frameInterval time.Duration) *EventLoop {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &EventLoop{
		frame:   frameInterval,
		tasks:   make(chan func(), 256),
		stopped: make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is done or Stop is called.
func (l *EventLoop) Run(ctx context.Context) {
	defer close(l.exited)

	for {
		select {
		case task := <-l.tasks:
			task()
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.stopped:
			return
		}
	}
}

// Stop ends Run. Pending tasks are dropped.
func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

// Wait blocks until Run has returned.
func (l *EventLoop) Wait() {
	<-l.exited
}

// Post queues fn. It reports false when the loop has stopped.
func (l *EventLoop) Post(fn func()) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stopped:
		return false
	}
}

// Do runs fn on the loop and waits for it. It must not be called from a task.
func (l *EventLoop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestFrame runs fn on the loop at the next frame.
func (l *EventLoop) RequestFrame(fn func()) func() {
	return l.AfterFunc(l.frame, fn)
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *EventLoop) AfterFunc(d time.Duration, fn func()) func() {
	var canceled atomic.Bool
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			if !canceled.Load() {
				fn()
			}
		})
	})
	return func() {
		canceled.Store(true)
		t.Stop()
	}
}
