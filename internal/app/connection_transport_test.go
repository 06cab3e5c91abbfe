package app

import (
	"testing"

	"github.com/skobkin/d7logger/internal/config"
)

func TestNewTransport(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Settings
		want    string
		wantErr bool
	}{
		{name: "serial", cfg: config.Settings{Port: "/dev/ttyACM0", Baud: 115200}, want: "serial"},
		{name: "tcp", cfg: config.Settings{TCP: "127.0.0.1:4000"}, want: "tcp"},
		{name: "replay", cfg: config.Settings{Replay: "dump.bin"}, want: "replay"},
		{name: "none", cfg: config.Settings{}, wantErr: true},
	}

	for _, tc := range tests {
		tr, err := NewTransport(tc.cfg)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if tr.Name() != tc.want {
			t.Fatalf("%s: expected transport %q, got %q", tc.name, tc.want, tr.Name())
		}
	}
}
