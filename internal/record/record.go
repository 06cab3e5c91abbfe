package record

import (
	"fmt"
	"time"
)

// Kind is the frame type code that selects a record layout.
type Kind byte

const (
	KindString      Kind = 0x01
	KindData        Kind = 0x02
	KindStack       Kind = 0x03
	KindPhyPacketTx Kind = 0x04
	KindPhyPacketRx Kind = 0x05
	KindDllResponse Kind = 0xFD
	KindTrace       Kind = 0xFF
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindData:
		return "data"
	case KindStack:
		return "stack"
	case KindPhyPacketTx:
		return "phy_packet_tx"
	case KindPhyPacketRx:
		return "phy_packet_rx"
	case KindDllResponse:
		return "dll_response"
	case KindTrace:
		return "trace"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(k))
	}
}

// Record is a decoded log frame. Records are immutable once queued.
type Record interface {
	Kind() Kind
	CapturedAt() time.Time
	PayloadLen() int
	sealed()
}

// PacketCarrier is implemented by records that hold an on-air radio packet.
type PacketCarrier interface {
	Record
	RawPacket() []byte
}

// Base holds the attributes shared by every record variant.
type Base struct {
	At     time.Time
	Length int
}

func (b Base) CapturedAt() time.Time { return b.At }
func (b Base) PayloadLen() int       { return b.Length }
func (Base) sealed()                 {}

type StringLog struct {
	Base
	Message string
}

func (StringLog) Kind() Kind { return KindString }

type DataLog struct {
	Base
	Data []byte
}

func (DataLog) Kind() Kind { return KindData }

type StackLog struct {
	Base
	Layer   Layer
	Message string
}

func (StackLog) Kind() Kind { return KindStack }

type TraceLog struct {
	Base
	Message string
}

func (TraceLog) Kind() Kind { return KindTrace }

type DllResponse struct {
	Base
	FrameType  uint8
	SpectrumID uint8
}

func (DllResponse) Kind() Kind { return KindDllResponse }

// PhyHeader is the fixed prefix shared by transmitted and received packets.
type PhyHeader struct {
	Timestamp       uint32
	ChannelHeader   uint8
	CenterFreqIndex uint8
	SyncWordClass   uint8
}

// PhyPacketTx is a packet handed to the radio for transmission.
// Packet starts with the length byte itself.
type PhyPacketTx struct {
	Base
	PhyHeader
	EIRP      int8
	PacketLen uint8
	Packet    []byte
}

func (PhyPacketTx) Kind() Kind          { return KindPhyPacketTx }
func (p PhyPacketTx) RawPacket() []byte { return p.Packet }

// PhyPacketRx is a packet received by the radio.
// Packet starts with the length byte itself.
type PhyPacketRx struct {
	Base
	PhyHeader
	LQI       uint8
	RSSI      int16
	PacketLen uint8
	Packet    []byte
}

func (PhyPacketRx) Kind() Kind          { return KindPhyPacketRx }
func (p PhyPacketRx) RawPacket() []byte { return p.Packet }

// Payload returns the variable part of a record as raw bytes.
func Payload(r Record) []byte {
	switch v := r.(type) {
	case StringLog:
		return []byte(v.Message)
	case DataLog:
		return v.Data
	case StackLog:
		return []byte(v.Message)
	case TraceLog:
		return []byte(v.Message)
	case DllResponse:
		return []byte{v.FrameType, v.SpectrumID}
	case PhyPacketTx:
		return v.Packet
	case PhyPacketRx:
		return v.Packet
	default:
		return nil
	}
}
