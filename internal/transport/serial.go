package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	defaultSerialReadTimeout = 300 * time.Millisecond
	serialReadBufferSize     = 4096
)

type SerialTransport struct {
	portName string
	baudRate int

	mu     sync.Mutex
	port   serial.Port
	reader *bufio.Reader
	closed bool
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
	}
}

func (t *SerialTransport) Name() string {
	return "serial"
}

func (t *SerialTransport) StatusTarget() string {
	return fmt.Sprintf("%s@%d", t.portName, t.baudRate)
}

// Connect opens the port and drops whatever the device sent before we
// attached, so the first sync scan starts on fresh bytes.
func (t *SerialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	logger := transportLogger("serial", t.portName)
	if t.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.portName == "" {
		return errors.New("serial port is empty")
	}
	if t.baudRate <= 0 {
		return fmt.Errorf("invalid serial baud rate: %d", t.baudRate)
	}

	port, err := serial.Open(t.portName, &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open serial port %q: %w", t.portName, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("set serial read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		logger.Warn("reset input buffer failed", "error", err)
	}
	t.port = port
	t.reader = bufio.NewReaderSize(port, serialReadBufferSize)
	t.closed = false
	logger.Info("connected", "baud", t.baudRate)

	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.reader = nil
	if err != nil {
		transportLogger("serial", t.portName).Warn("close failed", "error", err)
	}

	return err
}

func (t *SerialTransport) ReadFull(ctx context.Context, buf []byte) error {
	r, err := t.currentReader()
	if err != nil {
		return err
	}
	if err := readFull(ctx, r, buf); err != nil {
		if isPortClosed(err) {
			return ErrClosed
		}
		return err
	}

	return nil
}

func (t *SerialTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reader == nil {
		return 0
	}

	return t.reader.Buffered()
}

func (t *SerialTransport) currentReader() (*bufio.Reader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reader == nil {
		if t.closed {
			return nil, ErrClosed
		}
		return nil, ErrNotConnected
	}

	return t.reader, nil
}

func isPortClosed(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return portErr.Code() == serial.PortClosed
	}

	return false
}

// readFull keeps reading until buf is full. The port returns zero bytes on
// read timeout, which is where cancellation is observed.
func readFull(ctx context.Context, r io.Reader, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) && read > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}

	return nil
}
