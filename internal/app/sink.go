package app

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultSinkBuffer is the queue depth of an AsyncSink.
const DefaultSinkBuffer = 32

// SinkFunc adapts a function to Sink.
type SinkFunc func(res *FrameResult)

// Consume calls f.
func (f SinkFunc) Consume(res *FrameResult) { f(res) }

// AsyncSink moves a slow consumer off the frame loop. Results that arrive
// while the queue is full are dropped.
type AsyncSink struct {
	inner   Sink
	name    string
	ch      chan *FrameResult
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewAsyncSink starts a goroutine feeding inner. buffer < 1 uses DefaultSinkBuffer.
func NewAsyncSink(name string, inner Sink, buffer int) *AsyncSink {
	if buffer < 1 {
		buffer = DefaultSinkBuffer
	}
	a := &AsyncSink{
		inner: inner,
		name:  name,
		ch:    make(chan *FrameResult, buffer),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *AsyncSink) loop() {
	defer close(a.done)
	for res := range a.ch {
		a.inner.Consume(res)
	}
}

// Consume enqueues res without blocking.
func (a *AsyncSink) Consume(res *FrameResult) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}

	select {
	case a.ch <- res:
	default:
		if n := a.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("sink queue full, dropping results", "sink", a.name, "dropped", n)
		}
	}
}

// Dropped returns how many results were discarded.
func (a *AsyncSink) Dropped() uint64 {
	return a.dropped.Load()
}

// Close drains the queue, waits for the consumer and closes it if it is an
// io.Closer.
func (a *AsyncSink) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	<-a.done
	if c, ok := a.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
