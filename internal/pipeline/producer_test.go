package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skobkin/d7logger/internal/bus"
	"github.com/skobkin/d7logger/internal/connectors"
	"github.com/skobkin/d7logger/internal/export"
	"github.com/skobkin/d7logger/internal/queue"
	"github.com/skobkin/d7logger/internal/record"
	"github.com/skobkin/d7logger/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connected(t *testing.T, data []byte) *transport.ReplayTransport {
	t.Helper()
	tr := transport.NewReaderTransport(bytes.NewReader(data))
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	return tr
}

func runProducer(t *testing.T, data []byte, opts ...ProducerOption) ([]record.Record, *Stats) {
	t.Helper()
	b := queue.NewBroadcast[record.Record]()
	q := b.Subscribe()
	stats := NewStats(time.Now())
	opts = append([]ProducerOption{WithStats(stats), WithLogger(discardLogger())}, opts...)

	p := NewProducer(connected(t, data), b, opts...)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("producer returned error: %v", err)
	}

	return q.Drain(), stats
}

func messages(recs []record.Record) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		switch v := rec.(type) {
		case record.StringLog:
			out = append(out, v.Message)
		case record.TraceLog:
			out = append(out, v.Message)
		default:
			out = append(out, rec.Kind().String())
		}
	}

	return out
}

func TestProducerSkipsUnknownTypeAndDecodesNextFrame(t *testing.T) {
	data := []byte{0xDD, 0x07, 0xDD, 0x01, 0x05, 'H', 'e', 'l', 'l', 'o'}

	recs, stats := runProducer(t, data)
	if diff := cmp.Diff([]string{"Hello"}, messages(recs)); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
	if stats.Faults() != 1 {
		t.Fatalf("expected one fault, got %d", stats.Faults())
	}
	if stats.NoiseBytes() != 0 {
		t.Fatalf("expected no noise, got %d bytes", stats.NoiseBytes())
	}
}

func TestProducerRealignsAfterUnknownTypeThroughNoise(t *testing.T) {
	// The unknown frame's payload has no sync word, so it is skipped as noise.
	data := []byte{0xDD, 0x42, 'x', 'y', 0xDD, 0xFF, 0x02, 'o', 'k'}

	recs, stats := runProducer(t, data)
	if diff := cmp.Diff([]string{"ok"}, messages(recs)); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
	if stats.NoiseBytes() != 2 {
		t.Fatalf("expected 2 noise bytes, got %d", stats.NoiseBytes())
	}
}

func TestProducerTruncatedFrameSwallowsNextFrame(t *testing.T) {
	// A String announcing 5 bytes but carrying 2 consumes the next frame's
	// sync, type and length bytes; the rest of that frame becomes noise.
	data := []byte{0xDD, 0x01, 0x05, 'H', 'e', 0xDD, 0x01, 0x02, 'O', 'K'}

	recs, stats := runProducer(t, data)
	if diff := cmp.Diff([]string{"He\xDD\x01\x02"}, messages(recs)); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
	if stats.NoiseBytes() != 2 {
		t.Fatalf("expected trailing bytes as noise, got %d", stats.NoiseBytes())
	}
}

func TestProducerShortPayloadAtEndIsFault(t *testing.T) {
	data := []byte{0xDD, 0x01, 0x05, 'H', 'e'}

	recs, stats := runProducer(t, data)
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
	if stats.Faults() != 1 {
		t.Fatalf("expected one fault for the short payload, got %d", stats.Faults())
	}
}

func TestProducerPreservesOrder(t *testing.T) {
	var data []byte
	want := []string{"R1", "R2", "R3"}
	for _, msg := range want {
		var err error
		data, err = record.AppendFrame(data, record.StringLog{Message: msg})
		if err != nil {
			t.Fatalf("encode %s: %v", msg, err)
		}
	}

	recs, stats := runProducer(t, data)
	if diff := cmp.Diff(want, messages(recs)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if stats.Count(record.KindString) != 3 {
		t.Fatalf("expected 3 string frames, got %d", stats.Count(record.KindString))
	}
}

type recordingExporter struct {
	err   error
	calls int
	got   [][]byte
}

func (e *recordingExporter) Name() string { return "recording" }
func (e *recordingExporter) Close() error { return nil }

func (e *recordingExporter) Export(p record.PacketCarrier) error {
	e.calls++
	if e.err != nil {
		if e.calls > 1 {
			return export.ErrDisabled
		}
		return e.err
	}
	e.got = append(e.got, p.RawPacket())

	return nil
}

func phyStream(t *testing.T) []byte {
	t.Helper()
	var data []byte
	recs := []record.Record{
		record.PhyPacketTx{PacketLen: 3, Packet: []byte{0x03, 0x01, 0x02}},
		record.StringLog{Message: "between"},
		record.PhyPacketRx{PacketLen: 1, Packet: []byte{0x01}},
	}
	for _, rec := range recs {
		var err error
		data, err = record.AppendFrame(data, rec)
		if err != nil {
			t.Fatalf("encode %s: %v", rec.Kind(), err)
		}
	}

	return data
}

func TestProducerExportsPhyPacketsOnly(t *testing.T) {
	exp := &recordingExporter{}

	recs, _ := runProducer(t, phyStream(t), WithExporters(exp))
	if len(recs) != 3 {
		t.Fatalf("expected 3 records queued, got %d", len(recs))
	}
	if diff := cmp.Diff([][]byte{{0x03, 0x01, 0x02}, {0x01}}, exp.got); diff != "" {
		t.Fatalf("unexpected exported packets (-want +got):\n%s", diff)
	}
}

func TestProducerReportsExporterFailureOnce(t *testing.T) {
	b := bus.New(discardLogger(), 16)
	t.Cleanup(b.Close)
	faults := b.Subscribe(connectors.TopicFault)
	status := b.Subscribe(connectors.TopicSinkStatus)

	exp := &recordingExporter{err: errors.New("no reader")}
	recs, stats := runProducer(t, phyStream(t), WithExporters(exp), WithBus(b))
	if len(recs) != 3 {
		t.Fatalf("exporter failure must not drop records, got %d", len(recs))
	}
	if exp.calls != 2 {
		t.Fatalf("expected exporter to be called for both packets, got %d", exp.calls)
	}
	if stats.Faults() != 1 {
		t.Fatalf("expected a single fault, got %d", stats.Faults())
	}

	select {
	case msg := <-faults:
		f, ok := msg.(connectors.Fault)
		if !ok || f.Stage != connectors.StageExport {
			t.Fatalf("unexpected fault message: %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected fault on bus")
	}
	select {
	case msg := <-status:
		s, ok := msg.(connectors.SinkStatus)
		if !ok || s.State != connectors.SinkDisabled {
			t.Fatalf("unexpected sink status: %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected sink status on bus")
	}
}

func TestProducerPublishesNoise(t *testing.T) {
	b := bus.New(discardLogger(), 16)
	t.Cleanup(b.Close)
	sub := b.Subscribe(connectors.TopicRawNoise)

	data := append([]byte("boot\n"), 0xDD, 0xFF, 0x01, '!')
	runProducer(t, data, WithBus(b))

	select {
	case msg := <-sub:
		raw, ok := msg.(connectors.RawFrame)
		if !ok || raw.Hex != "626f6f740a" {
			t.Fatalf("expected boot noise, got %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for noise")
	}
}

func TestProducerStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	tr := transport.NewReaderTransport(pr)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := NewProducer(tr, queue.NewBroadcast[record.Record](), WithLogger(discardLogger()))
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	// Unblock the pending read; the loop must observe the cancellation.
	_ = pw.CloseWithError(context.Canceled)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("producer did not stop after cancel")
	}
}

func TestProducerNotConnected(t *testing.T) {
	tr := transport.NewReaderTransport(bytes.NewReader(nil))
	p := NewProducer(tr, queue.NewBroadcast[record.Record](), WithLogger(discardLogger()))
	if err := p.Run(context.Background()); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
