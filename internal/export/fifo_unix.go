//go:build unix

package export

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openFifo creates path as a FIFO unless it already exists and opens it for
// writing without blocking. ENXIO means nobody is reading.
func openFifo(path string) (*os.File, error) {
	if err := unix.Mkfifo(path, 0o600); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, fmt.Errorf("mkfifo: %w", err)
	}

	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return nil, ErrNoReader
		}
		return nil, fmt.Errorf("open fifo: %w", err)
	}
	// Writes block once a reader is connected.
	if err := unix.SetNonblock(fd, false); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set blocking: %w", err)
	}

	return os.NewFile(uintptr(fd), path), nil
}
