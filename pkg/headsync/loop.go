package headsync

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Dispatcher runs fn on the next turn of a host event loop.
type Dispatcher interface {
	Dispatch(fn func()) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(fn func()) error

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) error {
	return f(fn)
}

// DefaultQueueSize is the EventLoop queue capacity used when none is given.
const DefaultQueueSize = 256

// EventLoop is a single-goroutine Dispatcher. Functions run one at a time
// in dispatch order; a panicking function is logged and does not stop the
// loop.
type EventLoop struct {
	queue  chan func()
	done   chan struct{}
	exited chan struct{}
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	once    sync.Once
}

// NewEventLoop creates a loop with the given queue capacity. A nil logger
// uses slog.Default().
func NewEventLoop(size int, logger *slog.Logger) *EventLoop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLoop{
		queue:  make(chan func(), size),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logger.With("component", "eventloop"),
	}
}

// Dispatch queues fn. It never blocks.
func (l *EventLoop) Dispatch(fn func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.queue <- fn:
		return nil
	default:
		l.logger.Warn("dispatch queue full, discarding callback")
		return ErrQueueFull
	}
}

// Run processes queued functions until ctx is done or Close is called.
// Either way the loop stops accepting functions, and those already queued
// still run before Run returns. Only the first call to Run or Start has any
// effect.
func (l *EventLoop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return nil
	}
	return l.loop(ctx)
}

// Start runs the loop on a new goroutine. Unlike go l.Run(ctx), a Close
// made right after Start still waits for the queue to drain.
func (l *EventLoop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.loop(ctx)
}

func (l *EventLoop) loop(ctx context.Context) error {
	defer close(l.exited)

	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
		case <-ctx.Done():
			l.markClosed()
			l.drain()
			return ctx.Err()
		case <-l.done:
			l.drain()
			return nil
		}
	}
}

func (l *EventLoop) drain() {
	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
		default:
			return
		}
	}
}

func (l *EventLoop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// markClosed makes later Dispatch calls fail with ErrClosed. Holding the
// write lock waits out any Dispatch in progress, so nothing is queued after
// it returns.
func (l *EventLoop) markClosed() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// Close stops accepting functions and, if Run is active, waits for it to
// drain the queue and return.
func (l *EventLoop) Close() {
	l.once.Do(func() {
		l.markClosed()
		close(l.done)
	})
	if l.started.Load() {
		<-l.exited
	}
}
