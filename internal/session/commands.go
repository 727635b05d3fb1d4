package session

import (
	"context"
	"sync"

	"github.com/tgaller/triviador-server/internal/protocol"
)

// CommandQueue is the inbound half of a seat. Action commands queue in
// order; READY collapses into a one-slot signal consumed by the barrier.
// Stale entries from an earlier prompt are dropped with Drain when the
// next prompt frame is pushed, never when a receive begins, so an early
// answer queued while another seat is being collected survives.
type CommandQueue struct {
	mu     sync.Mutex
	cmds   []protocol.Command
	waiter chan struct{}
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

// NewCommandQueue returns an empty open queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push enqueues one command. READY is coalesced: a newer one supersedes
// any still-pending one.
func (q *CommandQueue) Push(cmd protocol.Command) error {
	if cmd.Kind == protocol.KindReady {
		q.SignalReady()
		return nil
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.cmds = append(q.cmds, cmd)
	if w := q.waiter; w != nil {
		q.waiter = nil
		close(w)
	}
	q.mu.Unlock()
	return nil
}

// SignalReady records a Ready acknowledgment. Duplicates collapse.
func (q *CommandQueue) SignalReady() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// AwaitReady blocks until a Ready arrived since the last AwaitReady, the
// context ends (ErrTimeout) or the queue closes (ErrClosed).
func (q *CommandQueue) AwaitReady(ctx context.Context) error {
	select {
	case <-q.ready:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	case <-q.done:
		return ErrClosed
	}
}

// Recv returns the oldest queued command, parking until one arrives, the
// context ends (ErrTimeout) or the queue closes (ErrClosed). READY never
// surfaces here. Single receiver; a second concurrent one gets ErrBusy.
func (q *CommandQueue) Recv(ctx context.Context) (protocol.Command, error) {
	for {
		q.mu.Lock()
		if len(q.cmds) > 0 {
			cmd := q.cmds[0]
			q.cmds = q.cmds[1:]
			q.mu.Unlock()
			return cmd, nil
		}
		if q.closed {
			q.mu.Unlock()
			return protocol.Command{}, ErrClosed
		}
		if q.waiter != nil {
			q.mu.Unlock()
			return protocol.Command{}, ErrBusy
		}
		w := make(chan struct{})
		q.waiter = w
		q.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			q.clearWaiter(w)
			return protocol.Command{}, ErrTimeout
		case <-q.done:
			q.clearWaiter(w)
			return protocol.Command{}, ErrClosed
		}
	}
}

func (q *CommandQueue) clearWaiter(w chan struct{}) {
	q.mu.Lock()
	if q.waiter == w {
		q.waiter = nil
	}
	q.mu.Unlock()
}

// Drain drops every queued command. The Ready signal is untouched.
func (q *CommandQueue) Drain() {
	q.mu.Lock()
	q.cmds = nil
	q.mu.Unlock()
}

// Close tears the queue down and wakes any parked receiver or barrier.
func (q *CommandQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	w := q.waiter
	q.waiter = nil
	q.mu.Unlock()
	if w != nil {
		close(w)
	}
	close(q.done)
}
