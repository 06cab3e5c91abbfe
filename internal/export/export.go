// Package export streams radio packets in pcap format to a capture file and
// to a named pipe read by a live packet analyzer.
package export

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/skobkin/d7logger/internal/record"
)

const (
	// SnapLen is the pcap snapshot length. Radio packets are at most 256 bytes.
	SnapLen = 65536
	// LinkType is DLT_USER0. Analyzers map it to a D7 dissector.
	LinkType = layers.LinkType(147)
)

var (
	// ErrNoReader is returned when the live pipe has no reader attached.
	ErrNoReader = errors.New("no reader attached to pipe")
	// ErrDisabled is returned by exporters disabled after a failure.
	ErrDisabled = errors.New("exporter disabled")
)

// Exporter receives every PHY packet record before it is queued for the
// consumers. Export failures are reported by the caller and never stop the
// producer.
type Exporter interface {
	Name() string
	Export(p record.PacketCarrier) error
	Close() error
}

// captureInfo builds the pcap record header for a packet.
func captureInfo(at time.Time, packet []byte) gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     at,
		CaptureLength: len(packet),
		Length:        len(packet),
	}
}

func writeHeader(w *pcapgo.Writer) error {
	if err := w.WriteFileHeader(SnapLen, LinkType); err != nil {
		return fmt.Errorf("write pcap header: %w", err)
	}

	return nil
}

func writePacket(w *pcapgo.Writer, p record.PacketCarrier) error {
	packet := p.RawPacket()
	if err := w.WritePacket(captureInfo(p.CapturedAt(), packet), packet); err != nil {
		return fmt.Errorf("write pcap record: %w", err)
	}

	return nil
}
