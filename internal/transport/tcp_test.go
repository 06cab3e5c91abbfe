package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
)

func TestTCPTransportReadsStream(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte{0xDD, 0x01, 0x02, 'o', 'k'})
		_ = conn.Close()
	}()

	tr := NewTCPTransport(ln.Addr().String())
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	buf := make([]byte, 5)
	if err := tr.ReadFull(context.Background(), buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[3:]) != "ok" {
		t.Fatalf("unexpected payload %q", buf)
	}

	if err := tr.ReadFull(context.Background(), buf[:1]); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after peer close, got %v", err)
	}
}

func TestTCPTransportRejectsBadAddress(t *testing.T) {
	tr := NewTCPTransport("no-port")
	if err := tr.Connect(context.Background()); err == nil {
		t.Fatalf("expected address error")
	}
}
