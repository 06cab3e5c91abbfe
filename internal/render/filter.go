package render

import (
	"github.com/skobkin/d7logger/internal/config"
	"github.com/skobkin/d7logger/internal/record"
)

// Visible reports whether settings allow rec to be rendered or persisted.
func Visible(s config.Settings, rec record.Record) bool {
	switch r := rec.(type) {
	case record.StringLog:
		return s.String
	case record.DataLog:
		return s.Data
	case record.TraceLog:
		return s.Trace
	case record.StackLog:
		return s.LayerEnabled(r.Layer.Key())
	case record.DllResponse:
		return s.DllRes
	case record.PhyPacketTx, record.PhyPacketRx:
		return s.PhyRes
	default:
		return false
	}
}
