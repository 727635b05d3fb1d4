// Package session turns the two HTTP channels of a connected player into
// a per-seat message stream: an outbound FIFO frame queue served by held
// Listen requests and an inbound typed-command queue with a Ready signal.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/tgaller/triviador-server/internal/metrics"
)

var (
	// ErrTimeout reports that a receive deadline passed with nothing to
	// deliver.
	ErrTimeout = errors.New("session: timeout")
	// ErrClosed reports that the queue was torn down.
	ErrClosed = errors.New("session: closed")
	// ErrOverflow reports that the outbound queue bound was hit; the
	// client is not draining its Listen channel.
	ErrOverflow = errors.New("session: frame queue overflow")
	// ErrBusy reports a second concurrent receiver on a single-receiver
	// queue.
	ErrBusy = errors.New("session: concurrent receiver")
)

// frameQueueBound caps undelivered outbound frames per seat. Hitting it
// means the client stopped polling; the match treats the seat as gone.
const frameQueueBound = 16

// FrameQueue is the outbound half of a seat: pushed documents are
// delivered in order to a single receiver, one per held Listen request.
// Nothing is dropped; two pushes before a receive mean the next two
// receives return both, in order.
type FrameQueue struct {
	mu     sync.Mutex
	frames []string
	waiter chan string
	done   chan struct{}
	closed bool
}

// NewFrameQueue returns an empty open queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{done: make(chan struct{})}
}

// Push enqueues one document. It hands off directly to a parked receiver
// when one is waiting, otherwise appends. Returns ErrOverflow when the
// bound is exceeded and ErrClosed after Close.
func (q *FrameQueue) Push(doc string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if w := q.waiter; w != nil {
		// Deposit before unlock; a cancelling receiver re-checks the
		// channel after relocking.
		q.waiter = nil
		w <- doc
		q.mu.Unlock()
		metrics.FramesPushed.Inc()
		return nil
	}
	if len(q.frames) >= frameQueueBound {
		q.mu.Unlock()
		return ErrOverflow
	}
	q.frames = append(q.frames, doc)
	q.mu.Unlock()
	metrics.FramesPushed.Inc()
	return nil
}

// Next returns the oldest undelivered document, parking until one arrives,
// the context ends (ErrTimeout) or the queue closes (ErrClosed). Only one
// receiver may park at a time; a second gets ErrBusy.
func (q *FrameQueue) Next(ctx context.Context) (string, error) {
	q.mu.Lock()
	if len(q.frames) > 0 {
		doc := q.frames[0]
		q.frames = q.frames[1:]
		q.mu.Unlock()
		return doc, nil
	}
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	if q.waiter != nil {
		q.mu.Unlock()
		return "", ErrBusy
	}
	w := make(chan string, 1)
	q.waiter = w
	q.mu.Unlock()

	select {
	case doc := <-w:
		return doc, nil
	case <-ctx.Done():
	case <-q.done:
	}

	q.mu.Lock()
	if q.waiter == w {
		q.waiter = nil
	}
	q.mu.Unlock()
	// A push may have won the race before the waiter was cleared.
	select {
	case doc := <-w:
		return doc, nil
	default:
	}
	if ctx.Err() != nil {
		return "", ErrTimeout
	}
	return "", ErrClosed
}

// Backlog returns the number of undelivered frames.
func (q *FrameQueue) Backlog() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close tears the queue down and wakes any parked receiver. Frames already
// queued stay deliverable; pushes after Close fail.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}
