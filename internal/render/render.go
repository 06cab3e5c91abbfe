// Package render turns decoded records into the live view and persisted log
// text. Both paths apply the same category filter and return "" for records
// the settings hide.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mgutz/ansi"

	"github.com/skobkin/d7logger/internal/config"
	"github.com/skobkin/d7logger/internal/record"
)

const (
	clockLayout   = "15:04:05.000000"
	tagWidth      = 16
	detailIndent  = 22
	phyLinePrefix = "PHY "
)

// Renderer formats records according to a fixed Settings value.
type Renderer struct {
	settings config.Settings
	color    bool
}

func New(settings config.Settings, color bool) *Renderer {
	return &Renderer{settings: settings, color: color}
}

func (r *Renderer) Settings() config.Settings {
	return r.settings
}

// Line renders rec for the persisted record log, newline terminated.
func (r *Renderer) Line(rec record.Record) string {
	if !Visible(r.settings, rec) {
		return ""
	}

	return r.Text(rec) + "\n"
}

// Text renders rec as one unfiltered plain line without a trailing newline.
func (r *Renderer) Text(rec record.Record) string {
	switch v := rec.(type) {
	case record.StringLog:
		return "STRING: " + v.Message
	case record.DataLog:
		return "DATA: " + r.bytes(v.Data)
	case record.TraceLog:
		return "TRACE: " + v.Message
	case record.StackLog:
		return v.Layer.Name + ": " + v.Message
	case record.DllResponse:
		return fmt.Sprintf("DLL RES: frame_type %d spectrum_id 0x%02X", v.FrameType, v.SpectrumID)
	case record.PhyPacketTx:
		return fmt.Sprintf("%sTX: timestamp %d channel_header 0x%x center_freq_index 0x%x syncword_class 0x%x eirp %d dBm packet_length %d packet %s",
			phyLinePrefix, v.Timestamp, v.ChannelHeader, v.CenterFreqIndex, v.SyncWordClass, v.EIRP, v.PacketLen, r.bytes(v.Packet))
	case record.PhyPacketRx:
		return fmt.Sprintf("%sRX: timestamp %d channel_header 0x%x center_freq_index 0x%x syncword_class 0x%x lqi %d rssi %d dBm packet_length %d packet %s",
			phyLinePrefix, v.Timestamp, v.ChannelHeader, v.CenterFreqIndex, v.SyncWordClass, v.LQI, v.RSSI, v.PacketLen, r.bytes(v.Packet))
	default:
		return rec.Kind().String()
	}
}

// Display renders rec for the live view, newline terminated.
func (r *Renderer) Display(rec record.Record) string {
	if !Visible(r.settings, rec) {
		return ""
	}

	at := rec.CapturedAt()
	switch v := rec.(type) {
	case record.StringLog:
		return r.header("STRING", "green", at) + " " + v.Message + "\n"
	case record.DataLog:
		return r.header("DATA", "yellow", at) + " " + r.bytes(v.Data) + "\n"
	case record.TraceLog:
		return r.header("TRACE", "yellow", at) + " " + v.Message + "\n"
	case record.StackLog:
		return r.header("STK: "+v.Layer.Name, v.Layer.Color, at) + " " + v.Message + "\n"
	case record.DllResponse:
		return r.header("DLL RES", "red", at) + fmt.Sprintf(" frame_type %d spectrum_id 0x%02X", v.FrameType, v.SpectrumID) + "\n"
	case record.PhyPacketTx:
		return r.phyBlock("PHY Packet TX", "Send packet", at, v.PhyHeader,
			fmt.Sprintf("eirp: %d dBm   packet length: %d", v.EIRP, v.PacketLen), v.Packet)
	case record.PhyPacketRx:
		return r.phyBlock("PHY Packet RX", "Received packet", at, v.PhyHeader,
			fmt.Sprintf("lqi: %d rssi: %d dBm   packet length: %d", v.LQI, v.RSSI, v.PacketLen), v.Packet)
	default:
		return ""
	}
}

// Error renders a fault as a timestamped ERROR line.
func (r *Renderer) Error(at time.Time, err error) string {
	msg := "<nil>"
	if err != nil {
		msg = err.Error()
	}

	return r.header("ERROR", "red", at) + " " + r.style(msg, "white+b:red") + "\n"
}

// Noise renders bytes seen outside of frames. The device prints plain text
// before the logger starts framing, so printable noise is shown as text, one
// output line per device line. Control bytes at line edges are dropped and
// interior ones masked.
func (r *Renderer) Noise(data []byte) string {
	var b strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimFunc(line, unprintable)
		if len(line) == 0 {
			continue
		}
		b.WriteString(r.style(Printable(line), "black+h"))
		b.WriteByte('\n')
	}

	return b.String()
}

func unprintable(r rune) bool {
	return r == utf8.RuneError || unicode.IsSpace(r) || !unicode.IsPrint(r)
}

// Port renders one entry of the serial port listing.
func (r *Renderer) Port(at time.Time, name, detail string) string {
	line := r.header("PORT", "green", at) + " " + name
	if detail != "" {
		line += "  " + detail
	}

	return line + "\n"
}

func (r *Renderer) phyBlock(tag, title string, at time.Time, h record.PhyHeader, radio string, packet []byte) string {
	indent := strings.Repeat(" ", detailIndent)

	var b strings.Builder
	b.WriteString(r.header(tag, "green", at))
	b.WriteString(" ")
	b.WriteString(title)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%stimestamp: %d\n", indent, h.Timestamp)
	fmt.Fprintf(&b, "%schannel header: 0x%x center freq index: 0x%x\n", indent, h.ChannelHeader, h.CenterFreqIndex)
	fmt.Fprintf(&b, "%ssyncword class: 0x%x\n", indent, h.SyncWordClass)
	fmt.Fprintf(&b, "%s%s\n", indent, radio)
	fmt.Fprintf(&b, "%spacket: %s\n", indent, r.bytes(packet))

	return b.String()
}

// header renders the clock and a fixed-width tag. Padding is applied to the
// visible tag so escape sequences never shift alignment.
func (r *Renderer) header(tag, color string, at time.Time) string {
	pad := ""
	if n := tagWidth - len(tag); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	style := ""
	if color != "" {
		style = "white+b:" + color
	}

	return r.style(at.Format(clockLayout), "black+h") + "  " + r.style(tag, style) + pad
}

func (r *Renderer) style(s, style string) string {
	if !r.color || style == "" {
		return s
	}

	return ansi.Color(s, style)
}

func (r *Renderer) bytes(data []byte) string {
	return FormatBytes(r.settings.Display, data)
}
