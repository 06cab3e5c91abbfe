package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ReplayTransport reads a raw byte dump instead of a live device. Reads
// return io.EOF once the dump is exhausted.
type ReplayTransport struct {
	path string
	src  io.Reader

	mu     sync.Mutex
	file   *os.File
	reader *bufio.Reader
	closed bool
}

// NewReplayTransport replays the file at path.
func NewReplayTransport(path string) *ReplayTransport {
	return &ReplayTransport{path: path}
}

// NewReaderTransport replays an already open reader. Close closes r when it
// is an io.Closer.
func NewReaderTransport(r io.Reader) *ReplayTransport {
	return &ReplayTransport{src: r}
}

func (t *ReplayTransport) Name() string {
	return "replay"
}

func (t *ReplayTransport) StatusTarget() string {
	return t.path
}

func (t *ReplayTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reader != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src := t.src
	if src == nil {
		if t.path == "" {
			return errors.New("replay path is empty")
		}
		// #nosec G304 -- replay path is provided by the operator.
		f, err := os.Open(filepath.Clean(t.path))
		if err != nil {
			return fmt.Errorf("open replay file: %w", err)
		}
		t.file = f
		src = f
	}
	t.reader = bufio.NewReader(src)
	t.closed = false
	transportLogger("replay", t.path).Debug("connected")

	return nil
}

func (t *ReplayTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.reader = nil
	if t.file == nil {
		if c, ok := t.src.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	err := t.file.Close()
	t.file = nil

	return err
}

func (t *ReplayTransport) ReadFull(ctx context.Context, buf []byte) error {
	t.mu.Lock()
	r := t.reader
	closed := t.closed
	t.mu.Unlock()
	if r == nil {
		if closed {
			return ErrClosed
		}
		return ErrNotConnected
	}

	return readFull(ctx, r, buf)
}

func (t *ReplayTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reader == nil {
		return 0
	}

	return t.reader.Buffered()
}
