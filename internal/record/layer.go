package record

import "strings"

// GenericLayerName is used for stack records whose layer code is not known.
const GenericLayerName = "STACK"

// Layer is a protocol layer tagging stack records. Color is empty for
// unknown layers.
type Layer struct {
	Code  byte
	Name  string
	Color string
}

var stackLayers = map[byte]Layer{
	0x01: {Code: 0x01, Name: "PHY", Color: "green"},
	0x02: {Code: 0x02, Name: "DLL", Color: "red"},
	0x03: {Code: 0x03, Name: "MAC", Color: "yellow"},
	0x04: {Code: 0x04, Name: "NWL", Color: "blue"},
	0x05: {Code: 0x05, Name: "TRANS", Color: "magenta"},
	0x06: {Code: 0x06, Name: "SESSION", Color: "white"},
	0x10: {Code: 0x10, Name: "FWK", Color: "cyan"},
}

// LookupLayer maps a layer code to its layer. Unknown codes map to the
// generic STACK layer.
func LookupLayer(code byte) Layer {
	if l, ok := stackLayers[code]; ok {
		return l
	}

	return Layer{Code: code, Name: GenericLayerName}
}

// Known reports whether the layer came from the fixed layer table.
func (l Layer) Known() bool {
	_, ok := stackLayers[l.Code]
	return ok && l.Name != GenericLayerName
}

// Key is the settings key that gates this layer.
func (l Layer) Key() string {
	return strings.ToLower(l.Name)
}
