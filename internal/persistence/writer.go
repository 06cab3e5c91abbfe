package persistence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrWriterClosed is returned by Enqueue after Close.
var ErrWriterClosed = errors.New("writer queue closed")

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue serializes database writes on one goroutine and retries failed
// writes. Commands run in the order they were enqueued.
type WriterQueue struct {
	logger *slog.Logger
	queue  chan writeCmd
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	failed int
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WriterQueue{
		logger: logger,
		queue:  make(chan writeCmd, capacity),
		done:   make(chan struct{}),
	}
}

// Enqueue blocks while the queue is full.
func (w *WriterQueue) Enqueue(ctx context.Context, name string, fn func(context.Context) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}

	select {
	case w.queue <- writeCmd{name: name, fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs queued commands with ctx until Close. Cancelling ctx makes the
// remaining commands fail fast instead of stopping the loop.
func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for cmd := range w.queue {
			if !w.runWithRetry(ctx, cmd) {
				w.mu.Lock()
				w.failed++
				w.mu.Unlock()
			}
		}
	}()
}

// Close stops accepting commands and waits until queued ones have run.
func (w *WriterQueue) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failed returns how many commands were dropped after exhausting retries.
func (w *WriterQueue) Failed() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.failed
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) bool {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := cmd.fn(ctx); err != nil {
			w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
			if attempt == maxAttempts {
				return false
			}
			select {
			case <-ctx.Done():
				return false
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		return true
	}

	return false
}
