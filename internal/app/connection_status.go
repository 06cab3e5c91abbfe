package app

import (
	"strings"

	"github.com/skobkin/d7logger/internal/config"
	"github.com/skobkin/d7logger/internal/connectors"
)

func TransportNameFromSettings(s config.Settings) string {
	switch {
	case strings.TrimSpace(s.Replay) != "":
		return "replay"
	case strings.TrimSpace(s.TCP) != "":
		return "tcp"
	case strings.TrimSpace(s.Port) != "":
		return "serial"
	default:
		return "unknown"
	}
}

func ConnectionTarget(s config.Settings) string {
	switch TransportNameFromSettings(s) {
	case "replay":
		return strings.TrimSpace(s.Replay)
	case "tcp":
		return strings.TrimSpace(s.TCP)
	case "serial":
		return strings.TrimSpace(s.Port)
	default:
		return ""
	}
}

func ConnectionStatusFromSettings(s config.Settings) connectors.ConnectionStatus {
	status := connectors.ConnectionStatus{
		State:         connectors.ConnectionStateDisconnected,
		TransportName: TransportNameFromSettings(s),
		Target:        ConnectionTarget(s),
	}
	if status.Target != "" {
		status.State = connectors.ConnectionStateConnecting
	}

	return status
}
