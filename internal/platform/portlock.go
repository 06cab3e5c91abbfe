// Package platform holds OS specific helpers.
package platform

import (
	"errors"
	"strings"
)

// ErrPortInUse means another logger process already reads the port.
var ErrPortInUse = errors.New("port already in use by another logger")

// ErrPortLockUnsupported means the current platform has no lock backend.
var ErrPortLockUnsupported = errors.New("port lock unsupported")

// PortLock is an advisory lock held for the lifetime of a serial session.
type PortLock interface {
	Release() error
}

// AcquirePortLock takes the per-user advisory lock for port. Two loggers on
// one port would split the byte stream between them and lose sync.
func AcquirePortLock(app, port string) (PortLock, error) {
	return acquirePortLock(lockComponent(app, "app"), lockComponent(port, "port"))
}

func lockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	normalized := strings.Trim(b.String(), "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
