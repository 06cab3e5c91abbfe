package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DisplayFormat selects how byte payloads are rendered.
type DisplayFormat string

const (
	DisplayHex DisplayFormat = "hex"
	DisplayBin DisplayFormat = "bin"
	DisplayDec DisplayFormat = "dec"
	DisplayTxt DisplayFormat = "txt"
)

// ColorMode controls ANSI styling of the live view.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

const (
	DefaultSerialBaud      = 115200
	DefaultDisplayInterval = 100 * time.Millisecond
	DefaultPersistInterval = 10 * time.Second
	DefaultShutdownTimeout = 3 * time.Second

	// FileAuto asks for a timestamped output base name.
	FileAuto = "auto"
	// FileNone disables file outputs.
	FileNone = "none"

	fileStampLayout = "20060102-150405"
	pipeFilename    = "d7logger-live.pcap"
)

// LoggingConfig defines diagnostic logging behavior.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Settings is the read-only configuration of one logger run. It is built once
// at startup and passed by value.
type Settings struct {
	Port   string `mapstructure:"port"`
	Baud   int    `mapstructure:"baud"`
	TCP    string `mapstructure:"tcp"`
	Replay string `mapstructure:"replay"`

	File     string `mapstructure:"file"`
	Pipe     bool   `mapstructure:"pipe"`
	PipePath string `mapstructure:"pipe_path"`
	DB       string `mapstructure:"db"`

	String bool `mapstructure:"string"`
	Data   bool `mapstructure:"data"`
	Trace  bool `mapstructure:"trace"`
	Stack  bool `mapstructure:"stack"`
	DllRes bool `mapstructure:"dllres"`
	PhyRes bool `mapstructure:"phyres"`

	Phy     bool `mapstructure:"phy"`
	DLL     bool `mapstructure:"dll"`
	MAC     bool `mapstructure:"mac"`
	NWL     bool `mapstructure:"nwl"`
	Trans   bool `mapstructure:"trans"`
	Session bool `mapstructure:"session"`
	FWK     bool `mapstructure:"fwk"`

	Raw     bool          `mapstructure:"raw"`
	Display DisplayFormat `mapstructure:"display"`
	Color   ColorMode     `mapstructure:"color"`

	DisplayInterval time.Duration `mapstructure:"display_interval"`
	PersistInterval time.Duration `mapstructure:"persist_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Log LoggingConfig `mapstructure:"log"`
}

// Default enables every category and disables every output file.
func Default() Settings {
	return Settings{
		Baud:            DefaultSerialBaud,
		PipePath:        filepath.Join(os.TempDir(), pipeFilename),
		String:          true,
		Data:            true,
		Trace:           true,
		Stack:           true,
		DllRes:          true,
		PhyRes:          true,
		Phy:             true,
		DLL:             true,
		MAC:             true,
		NWL:             true,
		Trans:           true,
		Session:         true,
		FWK:             true,
		Raw:             true,
		Display:         DisplayHex,
		Color:           ColorAuto,
		DisplayInterval: DefaultDisplayInterval,
		PersistInterval: DefaultPersistInterval,
		ShutdownTimeout: DefaultShutdownTimeout,
		Log: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LayerEnabled reports whether stack records for the named layer are shown.
// The generic "stack" layer is gated by the stack flag alone.
func (s Settings) LayerEnabled(key string) bool {
	if !s.Stack {
		return false
	}
	switch strings.ToLower(key) {
	case "phy":
		return s.Phy
	case "dll":
		return s.DLL
	case "mac":
		return s.MAC
	case "nwl":
		return s.NWL
	case "trans":
		return s.Trans
	case "session":
		return s.Session
	case "fwk":
		return s.FWK
	case "stack":
		return true
	default:
		return false
	}
}

// Persisting reports whether file outputs (record log and capture) are on.
func (s Settings) Persisting() bool {
	return s.File != ""
}

// RecordLogPath is the persisted record log for the configured file base.
func (s Settings) RecordLogPath() string {
	return s.File + ".log"
}

// CapturePath is the capture file for the configured file base.
func (s Settings) CapturePath() string {
	return s.File + ".pcap"
}

// Source names the configured byte source.
func (s Settings) Source() string {
	switch {
	case s.Replay != "":
		return "replay:" + s.Replay
	case s.TCP != "":
		return "tcp:" + s.TCP
	default:
		return "serial:" + s.Port
	}
}

// Normalize resolves placeholder values. now is used for the "auto" file base.
func (s *Settings) Normalize(now time.Time) {
	s.Port = strings.TrimSpace(s.Port)
	s.TCP = strings.TrimSpace(s.TCP)
	s.Replay = strings.TrimSpace(s.Replay)
	s.File = strings.TrimSpace(s.File)
	switch strings.ToLower(s.File) {
	case FileNone:
		s.File = ""
	case FileAuto:
		s.File = now.Format(fileStampLayout)
	}
	if s.File != "" {
		s.File = filepath.Clean(strings.TrimSuffix(s.File, ".pcap"))
	}
	if s.Display == "" {
		s.Display = DisplayHex
	}
	if s.Color == "" {
		s.Color = ColorAuto
	}
	if s.Baud <= 0 {
		s.Baud = DefaultSerialBaud
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
}

func (s Settings) Validate() error {
	sources := 0
	for _, v := range []string{s.Port, s.TCP, s.Replay} {
		if v != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return errors.New("no input: set a serial port, --tcp or --replay")
	case sources > 1:
		return errors.New("serial port, --tcp and --replay are mutually exclusive")
	}
	if s.Baud <= 0 {
		return errors.New("serial baud must be positive")
	}
	if s.Pipe && strings.TrimSpace(s.PipePath) == "" {
		return errors.New("pipe path is required when pipe output is enabled")
	}
	if _, err := ParseDisplayFormat(string(s.Display)); err != nil {
		return err
	}
	if _, err := ParseColorMode(string(s.Color)); err != nil {
		return err
	}
	if s.DisplayInterval <= 0 {
		return fmt.Errorf("display interval must be positive: %s", s.DisplayInterval)
	}
	if s.PersistInterval <= 0 {
		return fmt.Errorf("persist interval must be positive: %s", s.PersistInterval)
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive: %s", s.ShutdownTimeout)
	}

	return nil
}

func ParseDisplayFormat(raw string) (DisplayFormat, error) {
	switch f := DisplayFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case DisplayHex, DisplayBin, DisplayDec, DisplayTxt:
		return f, nil
	case "":
		return DisplayHex, nil
	default:
		return "", fmt.Errorf("unsupported display format: %q", raw)
	}
}

func ParseColorMode(raw string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	case "":
		return ColorAuto, nil
	default:
		return "", fmt.Errorf("unsupported color mode: %q", raw)
	}
}
