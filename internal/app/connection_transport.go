package app

import (
	"fmt"

	"github.com/skobkin/d7logger/internal/config"
	"github.com/skobkin/d7logger/internal/transport"
)

// NewTransport builds the input transport selected by settings.
func NewTransport(s config.Settings) (transport.Transport, error) {
	switch TransportNameFromSettings(s) {
	case "replay":
		return transport.NewReplayTransport(s.Replay), nil
	case "tcp":
		return transport.NewTCPTransport(s.TCP), nil
	case "serial":
		return transport.NewSerialTransport(s.Port, s.Baud), nil
	default:
		return nil, fmt.Errorf("no input configured")
	}
}
