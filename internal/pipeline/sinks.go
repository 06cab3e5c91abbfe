package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/skobkin/d7logger/internal/record"
	"github.com/skobkin/d7logger/internal/render"
)

const persistStampLayout = "2006/01/02 15:04:05  "

// DisplaySink renders records to the console.
type DisplaySink struct {
	console  *Console
	renderer *render.Renderer
}

func NewDisplaySink(console *Console, renderer *render.Renderer) *DisplaySink {
	return &DisplaySink{console: console, renderer: renderer}
}

func (d *DisplaySink) Name() string {
	return "display"
}

func (d *DisplaySink) Write(_ context.Context, recs []record.Record) error {
	var b strings.Builder
	for _, rec := range recs {
		b.WriteString(d.renderer.Display(rec))
	}

	return d.console.Print(b.String())
}

func (d *DisplaySink) Close() error {
	return nil
}

// LogSink appends filtered, timestamped lines to the persisted record log.
type LogSink struct {
	name     string
	w        io.WriteCloser
	renderer *render.Renderer
}

// NewLogSink writes to path with size based rotation.
func NewLogSink(path string, maxSizeMB, maxBackups int, renderer *render.Renderer) *LogSink {
	clean := filepath.Clean(path)

	return NewLogSinkWriter("log:"+clean, &lumberjack.Logger{
		Filename:   clean,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}, renderer)
}

func NewLogSinkWriter(name string, w io.WriteCloser, renderer *render.Renderer) *LogSink {
	return &LogSink{name: name, w: w, renderer: renderer}
}

func (l *LogSink) Name() string {
	return l.name
}

func (l *LogSink) Write(_ context.Context, recs []record.Record) error {
	var b strings.Builder
	for _, rec := range recs {
		line := l.renderer.Line(rec)
		if line == "" {
			continue
		}
		b.WriteString(rec.CapturedAt().Format(persistStampLayout))
		b.WriteString(line)
	}
	if b.Len() == 0 {
		return nil
	}
	if _, err := io.WriteString(l.w, b.String()); err != nil {
		return fmt.Errorf("append record log: %w", err)
	}

	return nil
}

func (l *LogSink) Close() error {
	if err := l.w.Close(); err != nil {
		return fmt.Errorf("close record log: %w", err)
	}

	return nil
}
