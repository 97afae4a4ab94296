// Package queue provides a bounded FIFO task queue with a blocking,
// timeout-bounded enqueue and a blocking dequeue.
//
// Closing the queue wakes every blocked producer and consumer. Items already
// buffered at close time remain dequeuable; Dequeue reports ErrClosed only
// once the buffer is empty.
package queue

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrFull is returned when an enqueue cannot admit the item within its
	// timeout (or immediately, for a non-blocking enqueue).
	ErrFull = errors.New("queue full")

	// ErrClosed is returned by Enqueue after Close, and by Dequeue once the
	// queue is closed and drained.
	ErrClosed = errors.New("queue closed")
)

// Queue is a fixed-capacity FIFO safe for any number of concurrent
// producers and consumers.
type Queue struct {
	ch   chan interface{}
	done chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New returns an empty queue with the given fixed capacity.
func New(capacity int) *Queue {
	return &Queue{
		ch:   make(chan interface{}, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue adds an item, waiting up to timeout for capacity to free. A
// timeout of zero or less makes the call non-blocking. Returns ErrFull on
// timeout or, non-blocking, when the queue is at capacity; ErrClosed once
// the queue is closed.
func (q *Queue) Enqueue(item interface{}, timeout time.Duration) error {
	// The read lock is held across the send so Close cannot close the
	// channel while a producer is inside it. Close signals done before
	// taking the write lock, which unblocks any producer parked here.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	if timeout <= 0 {
		select {
		case q.ch <- item:
			return nil
		case <-q.done:
			return ErrClosed
		default:
			return ErrFull
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.ch <- item:
		return nil
	case <-q.done:
		return ErrClosed
	case <-timer.C:
		return ErrFull
	}
}

// Dequeue removes and returns the oldest item, blocking until one is
// available. It returns ErrClosed once the queue is closed and every
// buffered item has been drained.
func (q *Queue) Dequeue() (interface{}, error) {
	item, ok := <-q.ch
	if !ok {
		return nil, ErrClosed
	}
	return item, nil
}

// TryDequeue removes and returns the oldest item without blocking. The
// second return value is false when the queue is empty or closed and
// drained.
func (q *Queue) TryDequeue() (interface{}, bool) {
	select {
	case item, ok := <-q.ch:
		if !ok {
			return nil, false
		}
		return item, true
	default:
		return nil, false
	}
}

// Close marks the queue closed and wakes all blocked producers and
// consumers. Safe to call more than once. Buffered items stay available to
// Dequeue until drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)

		// Taking the write lock here guarantees no producer is mid-send
		// when the channel closes; new producers see closed first.
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.ch)
	})
}

// Len reports the number of buffered items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the fixed capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// IsClosed reports whether Close has completed.
func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
