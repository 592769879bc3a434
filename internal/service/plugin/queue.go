package plugin

import (
	"sync"

	"github.com/VeeLume/streamdeck-counter/internal/service/controller"
)

// changeQueue is an unbounded queue of counter changes. Publish never blocks,
// so button goroutines can publish from any context.
type changeQueue struct {
	// mu guards pending.
	mu sync.Mutex
	// pending are changes not yet taken by the dispatcher.
	pending []controller.CounterChanged
	// ready holds a token while pending is non-empty.
	ready chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{ready: make(chan struct{}, 1)}
}

// Publish implements controller.Publisher.
func (q *changeQueue) Publish(ev controller.CounterChanged) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	signal(q.ready)
}

// Ready is signalled when changes are waiting.
func (q *changeQueue) Ready() <-chan struct{} {
	return q.ready
}

// Take removes and returns all pending changes.
func (q *changeQueue) Take() []controller.CounterChanged {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.pending
	q.pending = nil

	return out
}

// signal puts a token in ch unless one is already there.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
