package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/skobkin/d7logger/internal/bus"
	"github.com/skobkin/d7logger/internal/connectors"
	"github.com/skobkin/d7logger/internal/export"
	"github.com/skobkin/d7logger/internal/record"
	"github.com/skobkin/d7logger/internal/transport"
)

// Publisher receives decoded records in decode order.
type Publisher interface {
	Publish(rec record.Record)
}

// Source is the transport side the producer reads from.
type Source interface {
	ReadFull(ctx context.Context, buf []byte) error
	Available() int
}

// Producer owns the transport and runs the sync, decode, export and publish
// loop. It is the only reader of the transport.
type Producer struct {
	sync      *transport.Synchronizer
	decoder   *record.Decoder
	exporters []export.Exporter
	out       Publisher
	bus       bus.MessageBus
	stats     *Stats
	logger    *slog.Logger
	now       func() time.Time
}

type ProducerOption func(*Producer)

func WithExporters(exporters ...export.Exporter) ProducerOption {
	return func(p *Producer) {
		for _, e := range exporters {
			if e != nil {
				p.exporters = append(p.exporters, e)
			}
		}
	}
}

func WithBus(b bus.MessageBus) ProducerOption {
	return func(p *Producer) { p.bus = b }
}

func WithStats(s *Stats) ProducerOption {
	return func(p *Producer) { p.stats = s }
}

func WithLogger(l *slog.Logger) ProducerOption {
	return func(p *Producer) { p.logger = l }
}

func NewProducer(src Source, out Publisher, opts ...ProducerOption) *Producer {
	p := &Producer{
		decoder: record.NewDecoder(src),
		out:     out,
		stats:   NewStats(time.Now()),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sync = transport.NewSynchronizer(src, p.noise)

	return p
}

// Run loops until ctx is cancelled or the transport ends. Per-frame faults
// are reported and the loop resumes scanning at the next unread byte. It
// returns nil on cancellation, end of input and transport close.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Info("producer started", "exporters", len(p.exporters))
	defer p.logger.Info("producer stopped", "frames", p.stats.Frames(), "faults", p.stats.Faults())

	for {
		if ctx.Err() != nil {
			return nil
		}

		code, err := p.sync.NextFrameType(ctx)
		if err != nil {
			if done, stopErr := p.terminal(ctx, err); done {
				return stopErr
			}
			p.fault(connectors.StageSync, err)
			continue
		}

		frame, err := p.decoder.Decode(ctx, code)
		if err != nil {
			if done, stopErr := p.terminal(ctx, err); done {
				return stopErr
			}
			p.fault(connectors.StageDecode, err)
			continue
		}

		p.handle(frame)
	}
}

func (p *Producer) handle(frame record.Frame) {
	rec := frame.Record
	p.stats.Frame(rec.Kind(), len(frame.Raw)+2)

	if pc, ok := rec.(record.PacketCarrier); ok {
		p.export(pc)
	}

	p.out.Publish(rec)
}

func (p *Producer) export(pc record.PacketCarrier) {
	for _, e := range p.exporters {
		err := e.Export(pc)
		switch {
		case err == nil:
			p.stats.Export()
		case errors.Is(err, export.ErrDisabled):
		default:
			p.fault(connectors.StageExport, err)
			p.logger.Warn("exporter disabled", "exporter", e.Name(), "error", err)
			p.tryPublish(connectors.TopicSinkStatus, connectors.SinkStatus{
				Sink:  e.Name(),
				State: connectors.SinkDisabled,
				Err:   err,
				At:    p.now(),
			})
		}
	}
}

// terminal reports whether err ends the loop, and with which error.
func (p *Producer) terminal(ctx context.Context, err error) (bool, error) {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return true, nil
	case errors.Is(err, io.EOF):
		p.logger.Info("end of input")
		return true, nil
	case errors.Is(err, transport.ErrClosed):
		return true, nil
	case errors.Is(err, transport.ErrNotConnected):
		return true, err
	default:
		return false, nil
	}
}

func (p *Producer) fault(stage connectors.Stage, err error) {
	p.stats.Fault()
	p.logger.Warn("frame dropped", "stage", stage, "error", err)
	p.tryPublish(connectors.TopicFault, connectors.Fault{Stage: stage, Err: err, At: p.now()})
}

func (p *Producer) noise(data []byte) {
	p.stats.Noise(len(data))
	p.logger.Debug("unexpected bytes before sync word", "len", len(data))
	p.tryPublish(connectors.TopicRawNoise, connectors.NewRawFrame(data))
}

func (p *Producer) tryPublish(topic string, msg any) {
	if p.bus == nil {
		return
	}
	p.bus.TryPublish(topic, msg)
}
