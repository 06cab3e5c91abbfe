package transport

import (
	"context"
	"fmt"

	"github.com/skobkin/d7logger/internal/record"
)

const maxNoiseChunk = 256

// ByteSource is the part of a Transport the synchronizer needs.
type ByteSource interface {
	ReadFull(ctx context.Context, buf []byte) error
	Available() int
}

// Synchronizer scans the stream for the sync word. Bytes seen before it are
// handed to the noise callback in chunks: when the input goes idle, when the
// chunk is full, and right before a frame starts.
type Synchronizer struct {
	src     ByteSource
	onNoise func([]byte)

	one   [1]byte
	noise []byte
}

func NewSynchronizer(src ByteSource, onNoise func([]byte)) *Synchronizer {
	return &Synchronizer{src: src, onNoise: onNoise}
}

// NextFrameType blocks until a sync word is found and returns the type byte
// that follows it. It never backtracks.
func (s *Synchronizer) NextFrameType(ctx context.Context) (byte, error) {
	for {
		if err := s.src.ReadFull(ctx, s.one[:]); err != nil {
			s.flushNoise()
			return 0, fmt.Errorf("read sync byte: %w", err)
		}
		if s.one[0] == record.SyncWord {
			break
		}
		s.noise = append(s.noise, s.one[0])
		if len(s.noise) >= maxNoiseChunk || s.src.Available() == 0 {
			s.flushNoise()
		}
	}
	s.flushNoise()

	if err := s.src.ReadFull(ctx, s.one[:]); err != nil {
		return 0, fmt.Errorf("read frame type: %w", err)
	}

	return s.one[0], nil
}

func (s *Synchronizer) flushNoise() {
	if len(s.noise) == 0 {
		return
	}
	if s.onNoise != nil {
		chunk := make([]byte, len(s.noise))
		copy(chunk, s.noise)
		s.onNoise(chunk)
	}
	s.noise = s.noise[:0]
}
