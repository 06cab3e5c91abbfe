package connectors

import (
	"encoding/hex"
	"time"
)

// ConnectionState describes the input transport lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a bus event snapshot of the input transport.
type ConnectionStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Target        string
	Timestamp     time.Time
}

// Stage names the pipeline step a fault came from.
type Stage string

const (
	StageSync    Stage = "sync"
	StageDecode  Stage = "decode"
	StageExport  Stage = "export"
	StageDisplay Stage = "display"
	StagePersist Stage = "persist"
	StageArchive Stage = "archive"
)

// Fault is a recoverable error reported by a pipeline stage.
type Fault struct {
	Stage Stage
	Err   error
	At    time.Time
}

func (f Fault) Error() string {
	if f.Err == nil {
		return string(f.Stage)
	}
	return string(f.Stage) + ": " + f.Err.Error()
}

func (f Fault) Unwrap() error {
	return f.Err
}

// RawFrame carries bytes seen outside of frames.
type RawFrame struct {
	Data []byte
	Hex  string
	Len  int
}

func NewRawFrame(data []byte) RawFrame {
	return RawFrame{Data: data, Hex: hex.EncodeToString(data), Len: len(data)}
}

// SinkState is the lifecycle of an output sink.
type SinkState string

const (
	SinkOpened   SinkState = "opened"
	SinkDisabled SinkState = "disabled"
	SinkWaiting  SinkState = "waiting"
	SinkClosed   SinkState = "closed"
)

// SinkStatus reports an output sink transition.
type SinkStatus struct {
	Sink  string
	State SinkState
	Err   error
	At    time.Time
}
