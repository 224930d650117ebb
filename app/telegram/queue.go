package telegram

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of incoming messages. Push never blocks, so
// backfill and discovery can enqueue before any consumer starts draining.
type Queue struct {
	mu    sync.Mutex
	buf   []IncomingMessage
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) Push(msg IncomingMessage) {
	q.mu.Lock()
	q.buf = append(q.buf, msg)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop returns the oldest queued message, blocking until one is available or
// the context is cancelled.
func (q *Queue) Pop(ctx context.Context) (IncomingMessage, error) {
	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			msg := q.buf[0]
			q.buf = q.buf[1:]
			if len(q.buf) > 0 {
				select {
				case q.ready <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return IncomingMessage{}, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.buf)
}
