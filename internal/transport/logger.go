package transport

import "log/slog"

// transportLogger tags diagnostics with the transport kind and its target
// (device path, address or dump file).
func transportLogger(kind, target string) *slog.Logger {
	return slog.With("component", "transport", "transport", kind, "target", target)
}
