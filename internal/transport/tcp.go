package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const tcpPollInterval = 300 * time.Millisecond

// TCPTransport reads the log stream from a TCP serial bridge such as ser2net.
type TCPTransport struct {
	address string

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

func NewTCPTransport(address string) *TCPTransport {
	return &TCPTransport{address: address}
}

func (t *TCPTransport) Name() string {
	return "tcp"
}

func (t *TCPTransport) StatusTarget() string {
	return t.address
}

func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	logger := transportLogger("tcp", t.address)

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}
	if t.address == "" {
		return errors.New("tcp address is empty")
	}
	if _, _, err := net.SplitHostPort(t.address); err != nil {
		return fmt.Errorf("invalid tcp address %q: %w", t.address, err)
	}

	dialer := net.Dialer{Timeout: 6 * time.Second}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return fmt.Errorf("dial tcp: %w", err)
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.closed = false
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	if err != nil {
		transportLogger("tcp", t.address).Warn("close failed", "error", err)
	}

	return err
}

func (t *TCPTransport) ReadFull(ctx context.Context, buf []byte) error {
	conn, r, err := t.current()
	if err != nil {
		return err
	}

	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(tcpPollInterval))
		n, err := r.Read(buf[read:])
		read += n
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("read tcp: %w", err)
	}

	return nil
}

func (t *TCPTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reader == nil {
		return 0
	}

	return t.reader.Buffered()
}

func (t *TCPTransport) current() (net.Conn, *bufio.Reader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		if t.closed {
			return nil, nil, ErrClosed
		}
		return nil, nil, ErrNotConnected
	}

	return t.conn, t.reader, nil
}
