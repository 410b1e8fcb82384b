package events

import (
	"context"
	"errors"
	"sync"

	"github.com/taskflow/apiserver/internal/logging"
)

// ErrQueueFull is returned when the background queue cannot take another event.
var ErrQueueFull = errors.New("event queue full")

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("event publisher closed")

type queued struct {
	ctx   context.Context
	event Event
}

// AsyncPublisher hands events to a single background worker that forwards
// them to the wrapped Publisher. Publish never waits on the broker: once the
// queue holds size events, further events are dropped with ErrQueueFull.
type AsyncPublisher struct {
	next  Publisher
	queue chan queued
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(next Publisher, size int) *AsyncPublisher {
	if size <= 0 {
		size = 1
	}
	p := &AsyncPublisher{
		next:  next,
		queue: make(chan queued, size),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for the queued ones to be forwarded,
// or for ctx to end.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for item := range p.queue {
		if err := p.next.Publish(item.ctx, item.event); err != nil {
			logging.FromContext(item.ctx).Warn("deliver event failed", "type", item.event.Type, "user_id", item.event.UserID, "error", err)
		}
	}
}
