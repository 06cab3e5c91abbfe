// Package queue provides the unbounded FIFO queues that carry decoded
// records from the producer to each consumer.
package queue

import "sync"

// Queue is an unbounded FIFO safe for one producer and any number of
// readers. Push never blocks and never drops.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// Pop removes the oldest item. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return v, false
	}
	v = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}

	return v, true
}

// Drain removes and returns everything queued so far, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil

	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Broadcast copies every published value into each subscribed queue.
type Broadcast[T any] struct {
	mu     sync.RWMutex
	queues []*Queue[T]
}

func NewBroadcast[T any]() *Broadcast[T] {
	return &Broadcast[T]{}
}

// Subscribe returns a fresh queue that receives values published from now on.
func (b *Broadcast[T]) Subscribe() *Queue[T] {
	q := New[T]()
	b.mu.Lock()
	b.queues = append(b.queues, q)
	b.mu.Unlock()

	return q
}

func (b *Broadcast[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, q := range b.queues {
		q.Push(v)
	}
}

func (b *Broadcast[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.queues)
}
