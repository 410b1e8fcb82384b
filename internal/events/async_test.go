package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type blockingPublisher struct {
	release chan struct{}

	mu  sync.Mutex
	got []Event
	err error
}

func (p *blockingPublisher) Publish(ctx context.Context, event Event) error {
	<-p.release
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, event)
	return p.err
}

func (p *blockingPublisher) delivered() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.got...)
}

func TestAsyncPublisherDoesNotWaitOnBroker(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	pub := NewAsyncPublisher(next, 4)

	start := time.Now()
	for i := 1; i <= 3; i++ {
		require.NoError(t, pub.Publish(t.Context(), New(TaskCreated, 1, i)))
	}
	require.Less(t, time.Since(start), time.Second)
	require.Empty(t, next.delivered())

	close(next.release)
	require.NoError(t, pub.Close(t.Context()))

	got := next.delivered()
	require.Len(t, got, 3)
	for i, event := range got {
		require.Equal(t, i+1, event.TaskID)
	}
}

func TestAsyncPublisherDropsWhenFull(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	pub := NewAsyncPublisher(next, 1)

	// The worker takes at most one event off the queue and blocks on it, so
	// at most two publishes fit before the queue is full.
	var dropped int
	for i := 0; i < 5; i++ {
		if err := pub.Publish(t.Context(), New(TaskUpdated, 1, i)); err != nil {
			require.ErrorIs(t, err, ErrQueueFull)
			dropped++
		}
	}
	require.GreaterOrEqual(t, dropped, 3)

	close(next.release)
	require.NoError(t, pub.Close(t.Context()))
	require.Len(t, next.delivered(), 5-dropped)
}

func TestAsyncPublisherSurvivesDeliveryErrors(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{}), err: errors.New("broker down")}
	close(next.release)
	pub := NewAsyncPublisher(next, 8)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, pub.Publish(ctx, New(UserDeleted, 2, 0)))
	require.NoError(t, pub.Publish(t.Context(), New(UserRegistered, 3, 0)))
	require.NoError(t, pub.Close(t.Context()))
	require.Len(t, next.delivered(), 2)
}

func TestAsyncPublisherClose(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	pub := NewAsyncPublisher(next, 2)
	require.NoError(t, pub.Publish(t.Context(), New(TaskDeleted, 1, 1)))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, pub.Close(ctx), context.DeadlineExceeded)

	require.ErrorIs(t, pub.Publish(t.Context(), New(TaskDeleted, 1, 2)), ErrPublisherClosed)

	close(next.release)
	require.NoError(t, pub.Close(t.Context()))
	require.Len(t, next.delivered(), 1)
}
