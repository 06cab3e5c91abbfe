package pipeline

import (
	"io"
	"sync"
)

// Console serializes writes from the display consumer and the diagnostics
// watcher so their lines never interleave.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Print writes s as is. Empty strings are skipped.
func (c *Console) Print(s string) error {
	if s == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, s)

	return err
}
