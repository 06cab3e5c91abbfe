package record

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownRecordType is matched by errors returned for type codes outside
// the closed record set.
var ErrUnknownRecordType = errors.New("unknown record type")

type UnknownTypeError struct {
	Code byte
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown record type 0x%02X", e.Code)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownRecordType
}

// Source is a blocking byte source. ReadFull fills buf completely or fails.
type Source interface {
	ReadFull(ctx context.Context, buf []byte) error
}

// Frame is a decoded record together with the payload bytes consumed after
// the type byte.
type Frame struct {
	Record Record
	Raw    []byte
}

type decodeFunc func(r *fieldReader, base Base) (Record, error)

var decoders = map[Kind]decodeFunc{
	KindString:      decodeString,
	KindData:        decodeData,
	KindStack:       decodeStack,
	KindPhyPacketTx: decodePhyPacketTx,
	KindPhyPacketRx: decodePhyPacketRx,
	KindDllResponse: decodeDllResponse,
	KindTrace:       decodeTrace,
}

// Known reports whether code belongs to the closed record set.
func Known(code byte) bool {
	_, ok := decoders[Kind(code)]
	return ok
}

// Decoder reads type-specific payloads from a synchronized stream.
type Decoder struct {
	src Source
	now func() time.Time
}

func NewDecoder(src Source) *Decoder {
	return &Decoder{src: src, now: time.Now}
}

// Decode reads the payload for the record selected by code. The stream must
// be positioned right after the type byte.
func (d *Decoder) Decode(ctx context.Context, code byte) (Frame, error) {
	decode, ok := decoders[Kind(code)]
	if !ok {
		return Frame{}, &UnknownTypeError{Code: code}
	}

	r := &fieldReader{ctx: ctx, src: d.src}
	rec, err := decode(r, Base{At: d.now()})
	if err != nil {
		return Frame{Raw: r.raw}, fmt.Errorf("decode %s: %w", Kind(code), err)
	}

	return Frame{Record: rec, Raw: r.raw}, nil
}

type fieldReader struct {
	ctx context.Context
	src Source
	raw []byte
}

func (r *fieldReader) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if err := r.src.ReadFull(r.ctx, buf); err != nil {
		return nil, err
	}
	r.raw = append(r.raw, buf...)

	return buf, nil
}

func (r *fieldReader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *fieldReader) u16le() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *fieldReader) u32le() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *fieldReader) lengthPrefixed() (int, []byte, error) {
	n, err := r.u8()
	if err != nil {
		return 0, nil, fmt.Errorf("read length: %w", err)
	}
	payload, err := r.bytes(int(n))
	if err != nil {
		return 0, nil, fmt.Errorf("read %d payload bytes: %w", n, err)
	}
	return int(n), payload, nil
}

func decodeString(r *fieldReader, base Base) (Record, error) {
	n, payload, err := r.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	base.Length = n
	return StringLog{Base: base, Message: string(payload)}, nil
}

func decodeData(r *fieldReader, base Base) (Record, error) {
	n, payload, err := r.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	base.Length = n
	return DataLog{Base: base, Data: payload}, nil
}

func decodeTrace(r *fieldReader, base Base) (Record, error) {
	n, payload, err := r.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	base.Length = n
	return TraceLog{Base: base, Message: string(payload)}, nil
}

func decodeStack(r *fieldReader, base Base) (Record, error) {
	code, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("read layer: %w", err)
	}
	n, payload, err := r.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	base.Length = n
	return StackLog{Base: base, Layer: LookupLayer(code), Message: string(payload)}, nil
}

// The firmware emits a length byte ahead of the two fixed fields. It is kept
// as the payload length and does not change how many bytes are read.
func decodeDllResponse(r *fieldReader, base Base) (Record, error) {
	n, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	frameType, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("read frame type: %w", err)
	}
	spectrumID, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("read spectrum id: %w", err)
	}
	base.Length = int(n)
	return DllResponse{Base: base, FrameType: frameType, SpectrumID: spectrumID}, nil
}

func readPhyHeader(r *fieldReader) (PhyHeader, error) {
	var h PhyHeader
	var err error
	if h.Timestamp, err = r.u32le(); err != nil {
		return h, fmt.Errorf("read timestamp: %w", err)
	}
	if h.ChannelHeader, err = r.u8(); err != nil {
		return h, fmt.Errorf("read channel header: %w", err)
	}
	if h.CenterFreqIndex, err = r.u8(); err != nil {
		return h, fmt.Errorf("read center frequency index: %w", err)
	}
	if h.SyncWordClass, err = r.u8(); err != nil {
		return h, fmt.Errorf("read sync word class: %w", err)
	}
	return h, nil
}

// readPacket reads the length byte and the L-1 bytes that follow it. The
// length byte is kept as the first byte of the packet. A zero length yields
// a packet holding the length byte only.
func readPacket(r *fieldReader) (uint8, []byte, error) {
	n, err := r.u8()
	if err != nil {
		return 0, nil, fmt.Errorf("read packet length: %w", err)
	}
	packet := make([]byte, 1, max(int(n), 1))
	packet[0] = n
	if n <= 1 {
		return n, packet, nil
	}
	body, err := r.bytes(int(n) - 1)
	if err != nil {
		return 0, nil, fmt.Errorf("read %d packet bytes: %w", n-1, err)
	}
	return n, append(packet, body...), nil
}

func decodePhyPacketTx(r *fieldReader, base Base) (Record, error) {
	hdr, err := readPhyHeader(r)
	if err != nil {
		return nil, err
	}
	eirp, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("read eirp: %w", err)
	}
	n, packet, err := readPacket(r)
	if err != nil {
		return nil, err
	}
	base.Length = int(n)
	// #nosec G115 -- eirp is a signed byte on the wire.
	return PhyPacketTx{Base: base, PhyHeader: hdr, EIRP: int8(eirp), PacketLen: n, Packet: packet}, nil
}

func decodePhyPacketRx(r *fieldReader, base Base) (Record, error) {
	hdr, err := readPhyHeader(r)
	if err != nil {
		return nil, err
	}
	lqi, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("read lqi: %w", err)
	}
	rssi, err := r.u16le()
	if err != nil {
		return nil, fmt.Errorf("read rssi: %w", err)
	}
	n, packet, err := readPacket(r)
	if err != nil {
		return nil, err
	}
	base.Length = int(n)
	// #nosec G115 -- rssi is a signed 16-bit value on the wire.
	return PhyPacketRx{Base: base, PhyHeader: hdr, LQI: lqi, RSSI: int16(rssi), PacketLen: n, Packet: packet}, nil
}
