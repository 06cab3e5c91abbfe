package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skobkin/d7logger/internal/bus"
	"github.com/skobkin/d7logger/internal/config"
	"github.com/skobkin/d7logger/internal/connectors"
	"github.com/skobkin/d7logger/internal/queue"
	"github.com/skobkin/d7logger/internal/record"
	"github.com/skobkin/d7logger/internal/render"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	closed  bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, recs []record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, messages(recs))

	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	return nil
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, b := range s.batches {
		out = append(out, b...)
	}

	return out
}

func str(msg string) record.Record {
	return record.StringLog{Base: record.Base{At: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC), Length: len(msg)}, Message: msg}
}

func TestConsumerDrainsInOrderAndFinalDrainOnCancel(t *testing.T) {
	q := queue.New[record.Record]()
	sink := &recordingSink{}
	c := NewConsumer(connectors.StageDisplay, q, sink, 10*time.Millisecond, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	q.Push(str("R1"))
	q.Push(str("R2"))
	deadline := time.Now().Add(time.Second)
	for len(sink.all()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	q.Push(str("R3"))
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("consumer returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop")
	}

	if diff := cmp.Diff([]string{"R1", "R2", "R3"}, sink.all()); diff != "" {
		t.Fatalf("unexpected drained records (-want +got):\n%s", diff)
	}
	if !sink.closed {
		t.Fatalf("expected sink to be closed on shutdown")
	}
}

func TestConsumerReportsSinkFailureAndContinues(t *testing.T) {
	b := bus.New(discardLogger(), 16)
	t.Cleanup(b.Close)
	faults := b.Subscribe(connectors.TopicFault)

	q := queue.New[record.Record]()
	q.Push(str("R1"))
	sink := &recordingSink{err: errors.New("disk full")}
	c := NewConsumer(connectors.StagePersist, q, sink, time.Hour, b, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("consumer returned error: %v", err)
	}

	select {
	case msg := <-faults:
		f, ok := msg.(connectors.Fault)
		if !ok || f.Stage != connectors.StagePersist {
			t.Fatalf("unexpected fault: %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected fault on bus")
	}
	if !sink.closed {
		t.Fatalf("expected sink to be closed after failure")
	}
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestLogSinkWritesFilteredTimestampedLines(t *testing.T) {
	s := config.Default()
	s.MAC = false
	w := &closeRecorder{}
	sink := NewLogSinkWriter("log:test", w, render.New(s, false))

	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	recs := []record.Record{
		record.StringLog{Base: record.Base{At: at}, Message: "Hello"},
		record.StackLog{Base: record.Base{At: at}, Layer: record.LookupLayer(0x03), Message: "hidden"},
		record.StackLog{Base: record.Base{At: at}, Layer: record.LookupLayer(0x02), Message: "shown"},
	}
	if err := sink.Write(context.Background(), recs); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	want := "2024/03/05 14:07:09  STRING: Hello\n2024/03/05 14:07:09  DLL: shown\n"
	if got := w.String(); got != want {
		t.Fatalf("unexpected record log:\n%s", cmp.Diff(want, got))
	}
	if !w.closed {
		t.Fatalf("expected underlying writer to be closed")
	}
}

func TestDisplaySinkRendersThroughConsole(t *testing.T) {
	var out bytes.Buffer
	sink := NewDisplaySink(NewConsole(&out), render.New(config.Default(), false))

	if err := sink.Write(context.Background(), []record.Record{str("Hello"), str("World")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "Hello") || !strings.Contains(lines[1], "World") {
		t.Fatalf("unexpected display output: %q", out.String())
	}
}

func TestStatsSummary(t *testing.T) {
	started := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	s := NewStats(started)
	s.Frame(record.KindString, 8)
	s.Frame(record.KindString, 8)
	s.Frame(record.KindTrace, 4)
	s.Noise(5)
	s.Fault()

	got := s.Summary(started.Add(90 * time.Second))
	for _, want := range []string{"3 frames", "string=2", "trace=1", "1m30s", "25 B", "5 B noise", "1 faults"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary %q misses %q", got, want)
		}
	}
}
