package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/skobkin/d7logger/internal/bus"
	"github.com/skobkin/d7logger/internal/connectors"
	"github.com/skobkin/d7logger/internal/queue"
	"github.com/skobkin/d7logger/internal/record"
)

// Sink receives drained batches in decode order. A Sink is used by a single
// consumer goroutine.
type Sink interface {
	Name() string
	Write(ctx context.Context, recs []record.Record) error
	Close() error
}

// Consumer drains its own queue into a sink on a fixed interval. It never
// blocks on the queue, so a slow sink only delays itself.
type Consumer struct {
	stage    connectors.Stage
	queue    *queue.Queue[record.Record]
	sink     Sink
	interval time.Duration
	bus      bus.MessageBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewConsumer(stage connectors.Stage, q *queue.Queue[record.Record], sink Sink, interval time.Duration, b bus.MessageBus, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		stage:    stage,
		queue:    q,
		sink:     sink,
		interval: interval,
		bus:      b,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *Consumer) Name() string {
	return c.sink.Name()
}

// Run drains every interval until ctx is cancelled, then drains whatever is
// left and closes the sink.
func (c *Consumer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Debug("consumer started", "sink", c.sink.Name(), "interval", c.interval)
	for {
		select {
		case <-ctx.Done():
			c.drain(context.WithoutCancel(ctx))
			return c.close()
		case <-ticker.C:
			c.drain(ctx)
		}
	}
}

func (c *Consumer) drain(ctx context.Context) {
	recs := c.queue.Drain()
	if len(recs) == 0 {
		return
	}
	if err := c.sink.Write(ctx, recs); err != nil {
		c.logger.Warn("sink write failed", "sink", c.sink.Name(), "records", len(recs), "error", err)
		if c.bus != nil {
			c.bus.TryPublish(connectors.TopicFault, connectors.Fault{Stage: c.stage, Err: err, At: c.now()})
		}
	}
}

func (c *Consumer) close() error {
	err := c.sink.Close()
	if c.bus != nil {
		c.bus.TryPublish(connectors.TopicSinkStatus, connectors.SinkStatus{
			Sink:  c.sink.Name(),
			State: connectors.SinkClosed,
			Err:   err,
			At:    c.now(),
		})
	}
	c.logger.Debug("consumer stopped", "sink", c.sink.Name(), "error", err)

	return err
}
