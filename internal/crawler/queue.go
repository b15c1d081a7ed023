package crawler

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO of nodes waiting to be fetched.
// Push never blocks; Pop waits for an item with a timeout.
type Queue struct {
	mu    sync.Mutex
	items []*Node

	// ready holds a token while items may be available.
	ready chan struct{}
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends n to the queue.
func (q *Queue) Push(n *Node) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()

	q.signal()
}

// Pop removes and returns the oldest node. It waits up to timeout for one to
// arrive and returns false if none did or ctx was canceled first.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Node, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if n, ok := q.tryPop(); ok {
			return n, true
		}

		select {
		case <-q.ready:
		case <-timer.C:
			return q.tryPop()
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Len returns the number of queued nodes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) tryPop() (*Node, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	n := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	remaining := len(q.items)
	q.mu.Unlock()

	// Pass the token on so another waiter picks up the rest.
	if remaining > 0 {
		q.signal()
	}
	return n, true
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
