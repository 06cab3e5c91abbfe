package record

import (
	"encoding/binary"
	"fmt"
)

// SyncWord announces the start of every frame on the wire.
const SyncWord byte = 0xDD

// AppendFrame appends the wire encoding of rec (sync word, type byte and
// payload) to dst. It is the inverse of the decoder and is used to build
// replay dumps and synthetic streams.
func AppendFrame(dst []byte, rec Record) ([]byte, error) {
	dst = append(dst, SyncWord, byte(rec.Kind()))

	switch v := rec.(type) {
	case StringLog:
		return appendLengthPrefixed(dst, []byte(v.Message))
	case DataLog:
		return appendLengthPrefixed(dst, v.Data)
	case TraceLog:
		return appendLengthPrefixed(dst, []byte(v.Message))
	case StackLog:
		dst = append(dst, v.Layer.Code)
		return appendLengthPrefixed(dst, []byte(v.Message))
	case DllResponse:
		return append(dst, byte(v.Length), v.FrameType, v.SpectrumID), nil
	case PhyPacketTx:
		dst = appendPhyHeader(dst, v.PhyHeader)
		// #nosec G115 -- eirp is a signed byte on the wire.
		dst = append(dst, byte(v.EIRP))
		return appendPacket(dst, v.Packet)
	case PhyPacketRx:
		dst = appendPhyHeader(dst, v.PhyHeader)
		dst = append(dst, v.LQI)
		// #nosec G115 -- rssi is a signed 16-bit value on the wire.
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v.RSSI))
		return appendPacket(dst, v.Packet)
	default:
		return nil, fmt.Errorf("encode %T: unsupported record", rec)
	}
}

func appendLengthPrefixed(dst, payload []byte) ([]byte, error) {
	if len(payload) > 0xFF {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}
	dst = append(dst, byte(len(payload)))
	return append(dst, payload...), nil
}

func appendPhyHeader(dst []byte, h PhyHeader) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, h.Timestamp)
	return append(dst, h.ChannelHeader, h.CenterFreqIndex, h.SyncWordClass)
}

// appendPacket writes a packet whose first byte is its own length.
func appendPacket(dst, packet []byte) ([]byte, error) {
	if len(packet) == 0 {
		return nil, fmt.Errorf("packet must hold at least its length byte")
	}
	if int(packet[0]) != len(packet) && !(packet[0] == 0 && len(packet) == 1) {
		return nil, fmt.Errorf("packet length byte %d does not match %d bytes", packet[0], len(packet))
	}
	return append(dst, packet...), nil
}
