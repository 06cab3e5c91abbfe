package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriterQueue_RunsInOrderAndDrainsOnClose(t *testing.T) {
	w := NewWriterQueue(discardLogger(), 2)
	w.Start(context.Background())

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 10; i++ {
		if err := w.Enqueue(context.Background(), "append", func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 10 {
		t.Fatalf("expected 10 commands to run, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("command %d ran out of order: %v", i, got)
		}
	}

	if err := w.Enqueue(context.Background(), "late", func(context.Context) error { return nil }); !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed, got %v", err)
	}
}

func TestWriterQueue_RetriesThenCountsFailure(t *testing.T) {
	w := NewWriterQueue(discardLogger(), 1)
	w.Start(context.Background())

	attempts := 0
	if err := w.Enqueue(context.Background(), "flaky", func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("busy")
		}
		return nil
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if w.Failed() != 0 {
		t.Fatalf("expected no failed commands, got %d", w.Failed())
	}
}
