package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skobkin/d7logger/internal/bus"
	"github.com/skobkin/d7logger/internal/config"
	"github.com/skobkin/d7logger/internal/connectors"
	"github.com/skobkin/d7logger/internal/export"
	"github.com/skobkin/d7logger/internal/logging"
	"github.com/skobkin/d7logger/internal/persistence"
	"github.com/skobkin/d7logger/internal/pipeline"
	"github.com/skobkin/d7logger/internal/platform"
	"github.com/skobkin/d7logger/internal/queue"
	"github.com/skobkin/d7logger/internal/record"
	"github.com/skobkin/d7logger/internal/render"
	"github.com/skobkin/d7logger/internal/transport"
)

// ErrShutdownTimeout is returned when tasks outlive the shutdown timeout even
// after the transport was closed.
var ErrShutdownTimeout = errors.New("tasks did not stop before the shutdown timeout")

// Options carries process level collaborators. Zero values use stdout, a
// default log manager and the transport selected by settings. Exporters are
// added after the capture file and live pipe.
type Options struct {
	Stdout     io.Writer
	Color      bool
	LogManager *logging.Manager
	Transport  transport.Transport
	Exporters  []export.Exporter
}

// Runtime is the explicit context of one logger run. It is built once and
// shared by reference with every task.
type Runtime struct {
	Settings  config.Settings
	SessionID string
	StartedAt time.Time

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	Transport  transport.Transport
	Records    *queue.Broadcast[record.Record]
	Console    *pipeline.Console
	Renderer   *render.Renderer
	Stats      *pipeline.Stats

	logger    *slog.Logger
	extra     []export.Exporter
	exporters []export.Exporter
	consumers []*pipeline.Consumer

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool
}

func New(settings config.Settings, opts Options) (*Runtime, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.LogManager == nil {
		opts.LogManager = logging.NewManager(nil)
	}
	tr := opts.Transport
	if tr == nil {
		var err error
		if tr, err = NewTransport(settings); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	rt := &Runtime{
		Settings:   settings,
		SessionID:  uuid.NewString(),
		StartedAt:  started,
		LogManager: opts.LogManager,
		Bus:        bus.New(opts.LogManager.Logger("bus"), BusCapacity),
		Transport:  tr,
		Records:    queue.NewBroadcast[record.Record](),
		Console:    pipeline.NewConsole(opts.Stdout),
		Renderer:   render.New(settings, opts.Color),
		Stats:      pipeline.NewStats(started),
		extra:      opts.Exporters,
	}
	rt.logger = opts.LogManager.Logger("runtime").With("session", rt.SessionID)

	return rt, nil
}

// Run connects the transport and runs the producer, the consumers and the
// diagnostics watcher until ctx is cancelled or the input ends. Shutdown is
// bounded by Settings.ShutdownTimeout.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("starting d7logger", "version", BuildVersion(), "build_date", BuildDateYMD(), "source", r.Settings.Source())

	statusSub := r.Bus.Subscribe(connectors.TopicConnStatus)
	statusDone := make(chan struct{})
	go func() {
		defer close(statusDone)
		r.captureConnStatus(statusSub)
	}()
	watchSub := r.Bus.Subscribe(connectors.TopicFault, connectors.TopicRawNoise, connectors.TopicSinkStatus)
	watchStop := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		r.watch(watchSub, watchStop)
	}()
	defer func() {
		close(watchStop)
		<-watchDone
		r.Bus.Close()
		<-statusDone
	}()

	lock, err := r.lockPort()
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() {
			if relErr := lock.Release(); relErr != nil {
				r.logger.Warn("release port lock", "error", relErr)
			}
		}()
	}

	if err := r.connect(ctx); err != nil {
		return err
	}

	r.openExporters()
	r.openConsumers(ctx)

	err = r.runTasks(ctx)

	r.closeExporters()
	if closeErr := r.Transport.Close(); closeErr != nil && !errors.Is(closeErr, transport.ErrClosed) {
		r.logger.Warn("close transport", "error", closeErr)
	}
	r.publishConnStatus(connectors.ConnectionStateDisconnected, nil)
	r.logger.Info("run finished", r.Stats.LogAttrs(time.Now())...)

	return err
}

// Summary renders the end of run statistics line followed by the last known
// connection state.
func (r *Runtime) Summary() string {
	line := r.Stats.Summary(time.Now())
	status, ok := r.CurrentConnStatus()
	if !ok {
		return line
	}
	line += fmt.Sprintf(", %s %s %s", status.TransportName, status.Target, status.State)
	if status.Err != "" {
		line += ": " + status.Err
	}

	return line
}

// lockPort guards a serial port against a second logger. Platforms without a
// lock backend run unguarded.
func (r *Runtime) lockPort() (platform.PortLock, error) {
	if r.Settings.Port == "" {
		return nil, nil
	}
	lock, err := platform.AcquirePortLock(Name, r.Settings.Port)
	switch {
	case errors.Is(err, platform.ErrPortLockUnsupported):
		r.logger.Debug("port lock unavailable", "error", err)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("lock %s: %w", r.Settings.Port, err)
	}

	return lock, nil
}

func (r *Runtime) connect(ctx context.Context) error {
	r.publishConnStatus(connectors.ConnectionStateConnecting, nil)
	if err := r.Transport.Connect(ctx); err != nil {
		r.publishConnStatus(connectors.ConnectionStateDisconnected, err)
		return fmt.Errorf("connect %s: %w", r.Transport.Name(), err)
	}
	r.publishConnStatus(connectors.ConnectionStateConnected, nil)

	return nil
}

// openExporters enables the capture file and live pipe. Failures disable the
// exporter and are reported; they never stop the run.
func (r *Runtime) openExporters() {
	if r.Settings.Persisting() {
		capture, err := export.OpenCaptureFile(r.Settings.CapturePath())
		if err != nil {
			r.sinkDisabled("capture:"+r.Settings.CapturePath(), err)
		} else {
			r.exporters = append(r.exporters, capture)
			r.sinkOpened(capture.Name())
		}
	}
	if r.Settings.Pipe {
		pipe, err := export.OpenLivePipe(r.Settings.PipePath)
		if err != nil {
			r.sinkDisabled("pipe:"+r.Settings.PipePath, err)
		} else {
			r.exporters = append(r.exporters, pipe)
			r.sinkOpened(pipe.Name())
		}
	}
	r.exporters = append(r.exporters, r.extra...)
}

func (r *Runtime) closeExporters() {
	for _, e := range r.exporters {
		if err := e.Close(); err != nil {
			r.logger.Warn("close exporter", "exporter", e.Name(), "error", err)
		}
	}
}

// openConsumers subscribes every consumer queue before the producer starts
// so no record is missed.
func (r *Runtime) openConsumers(ctx context.Context) {
	s := r.Settings
	display := pipeline.NewDisplaySink(r.Console, r.Renderer)
	r.addConsumer(connectors.StageDisplay, display, s.DisplayInterval)

	if s.Persisting() {
		logSink := pipeline.NewLogSink(s.RecordLogPath(), s.Log.MaxSizeMB, s.Log.MaxBackups, r.Renderer)
		r.addConsumer(connectors.StagePersist, logSink, s.PersistInterval)
		r.sinkOpened(logSink.Name())
	}

	if s.DB != "" {
		archive, err := persistence.OpenArchive(ctx, s.DB, persistence.Session{
			ID:        r.SessionID,
			Source:    s.Source(),
			StartedAt: r.StartedAt,
		}, r.Renderer, r.LogManager.Logger("archive"))
		if err != nil {
			r.sinkDisabled("archive:"+s.DB, err)
			return
		}
		r.addConsumer(connectors.StageArchive, archive, s.PersistInterval)
		r.sinkOpened("archive:" + s.DB)
	}
}

func (r *Runtime) addConsumer(stage connectors.Stage, sink pipeline.Sink, interval time.Duration) {
	c := pipeline.NewConsumer(stage, r.Records.Subscribe(), sink, interval, r.Bus, r.LogManager.Logger(string(stage)))
	r.consumers = append(r.consumers, c)
}

// runTasks runs the producer on ctx and the consumers on their own context,
// which is cancelled only once the producer has returned. A record decoded
// while ctx is being cancelled still reaches every sink.
func (r *Runtime) runTasks(ctx context.Context) error {
	consumerCtx, stopConsumers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopConsumers()

	producer := pipeline.NewProducer(r.Transport, r.Records,
		pipeline.WithExporters(r.exporters...),
		pipeline.WithBus(r.Bus),
		pipeline.WithStats(r.Stats),
		pipeline.WithLogger(r.LogManager.Logger("producer")),
	)

	var g errgroup.Group
	g.Go(func() error {
		defer stopConsumers()
		return producer.Run(ctx)
	})
	for _, c := range r.consumers {
		g.Go(func() error {
			if err := c.Run(consumerCtx); err != nil {
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
			return nil
		})
	}

	wait := make(chan error, 1)
	go func() { wait <- g.Wait() }()

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
	}

	timeout := r.Settings.ShutdownTimeout
	select {
	case err := <-wait:
		return err
	case <-time.After(timeout):
	}

	// A blocked read only returns once the transport is closed.
	r.logger.Warn("tasks still running, closing transport", "timeout", timeout)
	_ = r.Transport.Close()
	select {
	case err := <-wait:
		return err
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// watch prints faults, raw device output and sink transitions to the console
// until stop is closed, then flushes what is already queued.
func (r *Runtime) watch(sub bus.Subscription, stop <-chan struct{}) {
	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				return
			}
			r.show(msg)
		case <-stop:
			for {
				select {
				case msg, ok := <-sub:
					if !ok {
						return
					}
					r.show(msg)
				default:
					return
				}
			}
		}
	}
}

func (r *Runtime) show(msg any) {
	var out string
	switch v := msg.(type) {
	case connectors.Fault:
		out = r.Renderer.Error(v.At, v)
	case connectors.RawFrame:
		if r.Settings.Raw {
			out = r.Renderer.Noise(v.Data)
		}
	case connectors.SinkStatus:
		if v.State == connectors.SinkDisabled {
			out = r.Renderer.Error(v.At, fmt.Errorf("%s disabled: %w", v.Sink, v.Err))
		}
	}
	if err := r.Console.Print(out); err != nil {
		r.logger.Debug("console write failed", "error", err)
	}
}

func (r *Runtime) sinkOpened(name string) {
	r.logger.Info("sink opened", "sink", name)
	r.Bus.TryPublish(connectors.TopicSinkStatus, connectors.SinkStatus{Sink: name, State: connectors.SinkOpened, At: time.Now()})
}

func (r *Runtime) sinkDisabled(name string, err error) {
	r.logger.Warn("sink disabled", "sink", name, "error", err)
	r.Bus.TryPublish(connectors.TopicSinkStatus, connectors.SinkStatus{Sink: name, State: connectors.SinkDisabled, Err: err, At: time.Now()})
}

func (r *Runtime) publishConnStatus(state connectors.ConnectionState, err error) {
	status := ConnectionStatusFromSettings(r.Settings)
	status.State = state
	status.TransportName = r.Transport.Name()
	if provider, ok := r.Transport.(transport.StatusTargetResolver); ok && provider.StatusTarget() != "" {
		status.Target = provider.StatusTarget()
	}
	if err != nil {
		status.Err = err.Error()
	}
	status.Timestamp = time.Now()
	r.Bus.TryPublish(connectors.TopicConnStatus, status)
}

func (r *Runtime) captureConnStatus(sub bus.Subscription) {
	for raw := range sub {
		status, ok := raw.(connectors.ConnectionStatus)
		if !ok {
			continue
		}
		r.logger.Info("connection status", "state", status.State, "transport", status.TransportName, "target", status.Target, "error", status.Err)
		r.connStatusMu.Lock()
		r.connStatus = status
		r.connStatusKnown = true
		r.connStatusMu.Unlock()
	}
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()
	return status, known
}
