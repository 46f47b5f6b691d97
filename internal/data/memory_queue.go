package data

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/pipeline"
)

// MemoryQueue is an unbounded in-process FIFO of pipeline envelopes. Messages
// do not survive a restart, so Ack and RequeueInflight are no-ops.
type MemoryQueue struct {
	mu     sync.Mutex
	items  []pipeline.Envelope
	signal chan struct{}
	closed bool
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{signal: make(chan struct{}, 1)}
}

// Publish appends env to the queue.
func (q *MemoryQueue) Publish(_ context.Context, env pipeline.Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Claim pops the oldest envelope, waiting up to timeout for one to arrive.
func (q *MemoryQueue) Claim(ctx context.Context, timeout time.Duration) (*core.Delivery, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if d, ok, err := q.pop(); err != nil || ok {
			return d, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, core.ErrNoMessage
		case <-q.signal:
		}
	}
}

func (q *MemoryQueue) pop() (*core.Delivery, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.closed {
			select {
			case q.signal <- struct{}{}:
			default:
			}
			return nil, false, ErrQueueClosed
		}
		return nil, false, nil
	}
	env := q.items[0]
	q.items[0] = pipeline.Envelope{}
	q.items = q.items[1:]

	// Wake another waiter if work remains.
	if len(q.items) > 0 {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return &core.Delivery{Envelope: env, Receipt: env.ID}, true, nil
}

// Ack is a no-op; claimed messages are already removed.
func (q *MemoryQueue) Ack(context.Context, *core.Delivery) error {
	return nil
}

// RequeueInflight is a no-op for the in-memory queue.
func (q *MemoryQueue) RequeueInflight(context.Context, int64) (int64, error) {
	return 0, nil
}

// Len returns the number of queued envelopes.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting messages. Queued messages can still be claimed.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}
