package transport

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by reads after the transport was closed.
	ErrClosed = errors.New("transport is closed")
	// ErrNotConnected is returned by reads before Connect succeeded.
	ErrNotConnected = errors.New("transport is not connected")
)

// Transport is an ordered byte source owned by a single reader.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	// ReadFull blocks until buf is filled or the read fails.
	ReadFull(ctx context.Context, buf []byte) error
	// Available reports how many bytes can be read without blocking.
	Available() int
}

type StatusTargetResolver interface {
	StatusTarget() string
}
