package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/gopacket/pcapgo"

	"github.com/skobkin/d7logger/internal/record"
)

// CaptureFile appends packets to a pcap file. The global header is written
// when the file is opened. After a write failure the exporter is disabled for
// the rest of the run.
type CaptureFile struct {
	path string

	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	w       *pcapgo.Writer
	failed  error
	packets int
}

// OpenCaptureFile truncates path and writes the pcap header, so a run without
// radio packets still leaves a valid empty capture.
func OpenCaptureFile(path string) (*CaptureFile, error) {
	c := &CaptureFile{path: filepath.Clean(path)}
	if err := c.open(); err != nil {
		_ = c.fail(err)
		return nil, err
	}

	return c, nil
}

func (c *CaptureFile) Name() string {
	return "capture:" + c.path
}

func (c *CaptureFile) Export(p record.PacketCarrier) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed != nil || c.w == nil {
		return ErrDisabled
	}
	if err := writePacket(c.w, p); err != nil {
		return c.fail(err)
	}
	if err := c.buf.Flush(); err != nil {
		return c.fail(fmt.Errorf("flush capture file: %w", err))
	}
	c.packets++

	return nil
}

// Packets returns how many packets were written.
func (c *CaptureFile) Packets() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.packets
}

func (c *CaptureFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}
	flushErr := c.buf.Flush()
	closeErr := c.file.Close()
	c.file, c.buf, c.w = nil, nil, nil
	if c.failed == nil {
		c.failed = ErrDisabled
	}

	return errors.Join(flushErr, closeErr)
}

func (c *CaptureFile) open() error {
	// #nosec G304 -- capture path comes from operator configuration.
	file, err := os.OpenFile(c.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open capture file: %w", err)
	}
	c.file = file
	c.buf = bufio.NewWriter(file)
	c.w = pcapgo.NewWriter(c.buf)
	if err := writeHeader(c.w); err != nil {
		return err
	}
	if err := c.buf.Flush(); err != nil {
		return fmt.Errorf("flush capture header: %w", err)
	}

	return nil
}

func (c *CaptureFile) fail(err error) error {
	c.failed = err
	if c.file != nil {
		_ = c.file.Close()
		c.file, c.buf, c.w = nil, nil, nil
	}

	return err
}
