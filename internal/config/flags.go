package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// flagKeys maps flags whose name differs from their settings key.
var flagKeys = map[string]string{
	"pipe-path":        "pipe_path",
	"display-interval": "display_interval",
	"persist-interval": "persist_interval",
	"shutdown-timeout": "shutdown_timeout",
	"log-level":        "log.level",
	"log-file":         "log.file",
}

// RegisterFlags declares every settings flag on fs with defaults from d.
func RegisterFlags(fs *pflag.FlagSet, d Settings) {
	fs.String("port", d.Port, "serial port (eg /dev/ttyUSB0 or COM7)")
	fs.IntP("baud", "b", d.Baud, "serial baud rate")
	fs.String("tcp", d.TCP, "read from a TCP serial bridge at host:port instead of a serial port")
	fs.String("replay", d.Replay, "replay a raw byte dump instead of reading a serial port")

	fs.StringP("file", "f", d.File, "write <file>.log and <file>.pcap; give the name as -f=<file> or --file=<file>, without a value a timestamped name is used")
	fs.Lookup("file").NoOptDefVal = FileAuto
	fs.BoolP("pipe", "p", d.Pipe, "stream live capture data to a named pipe")
	fs.String("pipe-path", d.PipePath, "named pipe used by --pipe")
	fs.String("db", d.DB, "archive decoded records into a sqlite database")

	fs.Bool("string", d.String, "show string logs")
	fs.Bool("data", d.Data, "show data logs")
	fs.Bool("trace", d.Trace, "show trace logs")
	fs.Bool("stack", d.Stack, "show stack logs")
	fs.Bool("phy", d.Phy, "show stack logs for phy")
	fs.Bool("dll", d.DLL, "show stack logs for dll")
	fs.Bool("mac", d.MAC, "show stack logs for mac")
	fs.Bool("nwl", d.NWL, "show stack logs for nwl")
	fs.Bool("trans", d.Trans, "show stack logs for trans")
	fs.Bool("session", d.Session, "show stack logs for session")
	fs.Bool("fwk", d.FWK, "show stack logs for fwk")
	fs.Bool("dllres", d.DllRes, "show DLL response logs")
	fs.Bool("phyres", d.PhyRes, "show PHY packet logs")

	fs.Bool("raw", d.Raw, "echo bytes received outside of frames")
	fs.String("display", string(d.Display), "payload format: hex, bin, dec or txt")
	fs.String("color", string(d.Color), "color output: auto, always or never")
	fs.Duration("display-interval", d.DisplayInterval, "live view drain interval")
	fs.Duration("persist-interval", d.PersistInterval, "record log drain interval")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "how long to wait for tasks on shutdown")

	fs.String("log-level", d.Log.Level, "diagnostic log level: debug, info, warn or error")
	fs.String("log-file", d.Log.File, "also write diagnostic logs to this rotated file")
}

// keyForFlag returns the settings key a flag is bound to.
func keyForFlag(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}

	return strings.ReplaceAll(name, "-", "_")
}
