package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/gopacket/pcapgo"

	"github.com/skobkin/d7logger/internal/record"
)

// LivePipe streams pcap records into a named pipe. It must be opened while
// an analyzer is reading the pipe; write failures, such as the reader going
// away, disable it.
type LivePipe struct {
	path string

	mu     sync.Mutex
	file   *os.File
	w      *pcapgo.Writer
	failed error
}

// OpenLivePipe creates the named pipe if needed and connects to its reader.
// It returns ErrNoReader when no analyzer has the pipe open.
func OpenLivePipe(path string) (*LivePipe, error) {
	clean := filepath.Clean(path)
	file, err := openFifo(clean)
	if err != nil {
		return nil, fmt.Errorf("open live pipe %s: %w", clean, err)
	}

	p := &LivePipe{path: clean, file: file, w: pcapgo.NewWriter(file)}
	if err := writeHeader(p.w); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("open live pipe %s: %w", clean, err)
	}

	return p, nil
}

func (p *LivePipe) Name() string {
	return "pipe:" + p.path
}

func (p *LivePipe) Export(rec record.PacketCarrier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failed != nil {
		return ErrDisabled
	}
	if err := writePacket(p.w, rec); err != nil {
		p.failed = err
		_ = p.file.Close()
		return err
	}

	return nil
}

func (p *LivePipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failed != nil {
		return nil
	}
	p.failed = ErrDisabled

	return p.file.Close()
}
