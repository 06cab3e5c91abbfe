package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/skobkin/d7logger/internal/record"
)

// Stats counts what the producer saw during one run.
type Stats struct {
	started time.Time

	bytes   atomic.Uint64
	noise   atomic.Uint64
	faults  atomic.Uint64
	exports atomic.Uint64

	mu    sync.Mutex
	kinds map[record.Kind]uint64
}

func NewStats(started time.Time) *Stats {
	return &Stats{started: started, kinds: make(map[record.Kind]uint64)}
}

// Frame records a decoded frame of n bytes including sync and type.
func (s *Stats) Frame(kind record.Kind, n int) {
	s.bytes.Add(uint64(n)) // #nosec G115 -- n is a frame length
	s.mu.Lock()
	s.kinds[kind]++
	s.mu.Unlock()
}

func (s *Stats) Noise(n int) {
	s.bytes.Add(uint64(n)) // #nosec G115 -- n is a chunk length
	s.noise.Add(uint64(n)) // #nosec G115 -- n is a chunk length
}

func (s *Stats) Fault() {
	s.faults.Add(1)
}

func (s *Stats) Export() {
	s.exports.Add(1)
}

func (s *Stats) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint64
	for _, n := range s.kinds {
		total += n
	}

	return total
}

func (s *Stats) Count(kind record.Kind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.kinds[kind]
}

func (s *Stats) Faults() uint64 {
	return s.faults.Load()
}

func (s *Stats) NoiseBytes() uint64 {
	return s.noise.Load()
}

// LogAttrs returns the counters as slog key/value pairs.
func (s *Stats) LogAttrs(now time.Time) []any {
	return []any{
		"duration", now.Sub(s.started).Round(time.Millisecond).String(),
		"frames", s.Frames(),
		"bytes", humanize.Bytes(s.bytes.Load()),
		"noise", humanize.Bytes(s.noise.Load()),
		"faults", s.faults.Load(),
		"exported", s.exports.Load(),
		"kinds", s.kindSummary(),
	}
}

// Summary renders a one-line end of run report.
func (s *Stats) Summary(now time.Time) string {
	return fmt.Sprintf("%s frames (%s) in %s from %s, %s noise, %s faults, %s packets exported",
		humanize.Comma(int64(s.Frames())), // #nosec G115 -- counters stay far below MaxInt64
		s.kindSummary(),
		now.Sub(s.started).Round(time.Second),
		humanize.Bytes(s.bytes.Load()),
		humanize.Bytes(s.noise.Load()),
		humanize.Comma(int64(s.faults.Load())),  // #nosec G115 -- counters stay far below MaxInt64
		humanize.Comma(int64(s.exports.Load())), // #nosec G115 -- counters stay far below MaxInt64
	)
}

func (s *Stats) kindSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]record.Kind, 0, len(s.kinds))
	for k := range s.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.kinds[k]))
	}

	return strings.Join(parts, " ")
}
